package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/veydev/autocare/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testClaims(userID string) *models.Claims {
	return &models.Claims{UserID: userID, Email: "driver@example.com", Role: models.RoleUser}
}

func TestVehicleHandler_List(t *testing.T) {
	mockVehicles := new(MockVehicleCollection)
	handler := NewVehicleHandler(mockVehicles)

	userID := primitive.NewObjectID().Hex()
	owned := []models.Vehicle{
		{ID: primitive.NewObjectID(), UserID: userID, Make: "Toyota", Model: "Corolla", Odometer: 54000},
		{ID: primitive.NewObjectID(), UserID: userID, Make: "Mazda", Model: "3", Odometer: 12000},
	}

	mockVehicles.On("FindVehicles", mock.Anything, bson.M{"user_id": userID}).Return(&fakeCursor{vehicles: owned}, nil)

	req := httptest.NewRequest("GET", "/api/vehicles", nil)
	req = withClaims(req, testClaims(userID))
	w := httptest.NewRecorder()

	handler.HandleVehicles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got []models.Vehicle
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "Toyota", got[0].Make)

	mockVehicles.AssertExpectations(t)
}

func TestVehicleHandler_Create(t *testing.T) {
	t.Run("valid vehicle", func(t *testing.T) {
		mockVehicles := new(MockVehicleCollection)
		handler := NewVehicleHandler(mockVehicles)

		userID := primitive.NewObjectID().Hex()
		newID := primitive.NewObjectID().Hex()

		mockVehicles.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v models.Vehicle) bool {
			return v.UserID == userID && v.Make == "Toyota"
		})).Return(newID, nil)

		body, _ := json.Marshal(models.Vehicle{Make: "Toyota", Model: "Corolla", Year: 2019, Odometer: 54000})
		req := httptest.NewRequest("POST", "/api/vehicles", bytes.NewBuffer(body))
		req = withClaims(req, testClaims(userID))
		w := httptest.NewRecorder()

		handler.HandleVehicles(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, newID, resp["id"])

		mockVehicles.AssertExpectations(t)
	})

	t.Run("missing make", func(t *testing.T) {
		mockVehicles := new(MockVehicleCollection)
		handler := NewVehicleHandler(mockVehicles)

		body, _ := json.Marshal(models.Vehicle{Model: "Corolla"})
		req := httptest.NewRequest("POST", "/api/vehicles", bytes.NewBuffer(body))
		req = withClaims(req, testClaims(primitive.NewObjectID().Hex()))
		w := httptest.NewRecorder()

		handler.HandleVehicles(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative odometer", func(t *testing.T) {
		mockVehicles := new(MockVehicleCollection)
		handler := NewVehicleHandler(mockVehicles)

		body, _ := json.Marshal(models.Vehicle{Make: "Toyota", Model: "Corolla", Odometer: -1})
		req := httptest.NewRequest("POST", "/api/vehicles", bytes.NewBuffer(body))
		req = withClaims(req, testClaims(primitive.NewObjectID().Hex()))
		w := httptest.NewRecorder()

		handler.HandleVehicles(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVehicleHandler_OwnershipScoping(t *testing.T) {
	mockVehicles := new(MockVehicleCollection)
	handler := NewVehicleHandler(mockVehicles)

	ownerID := primitive.NewObjectID().Hex()
	intruderID := primitive.NewObjectID().Hex()
	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), UserID: ownerID, Make: "Toyota", Model: "Corolla"}

	mockVehicles.On("FindVehicleByID", mock.Anything, vehicle.ID.Hex()).Return(vehicle, nil)

	req := httptest.NewRequest("GET", "/api/vehicles?id="+vehicle.ID.Hex(), nil)
	req = withClaims(req, testClaims(intruderID))
	w := httptest.NewRecorder()

	handler.HandleVehicles(w, req)

	// Another user's vehicle looks like it does not exist
	assert.Equal(t, http.StatusNotFound, w.Code)
	mockVehicles.AssertNotCalled(t, "DeleteVehicle", mock.Anything, mock.Anything)
}

func TestVehicleHandler_Update(t *testing.T) {
	mockVehicles := new(MockVehicleCollection)
	handler := NewVehicleHandler(mockVehicles)

	userID := primitive.NewObjectID().Hex()
	existing := &models.Vehicle{ID: primitive.NewObjectID(), UserID: userID, Make: "Toyota", Model: "Corolla", Odometer: 54000}

	mockVehicles.On("FindVehicleByID", mock.Anything, existing.ID.Hex()).Return(existing, nil)
	mockVehicles.On("UpdateVehicle", mock.Anything, existing.ID.Hex(), mock.MatchedBy(func(v models.Vehicle) bool {
		// Ownership survives the update even if the client lies about it
		return v.UserID == userID && v.Odometer == 60000
	})).Return(nil)

	body, _ := json.Marshal(models.Vehicle{UserID: "someone-else", Make: "Toyota", Model: "Corolla", Odometer: 60000})
	req := httptest.NewRequest("PUT", "/api/vehicles?id="+existing.ID.Hex(), bytes.NewBuffer(body))
	req = withClaims(req, testClaims(userID))
	w := httptest.NewRecorder()

	handler.HandleVehicles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockVehicles.AssertExpectations(t)
}

func TestVehicleHandler_Delete(t *testing.T) {
	mockVehicles := new(MockVehicleCollection)
	handler := NewVehicleHandler(mockVehicles)

	userID := primitive.NewObjectID().Hex()
	existing := &models.Vehicle{ID: primitive.NewObjectID(), UserID: userID}

	mockVehicles.On("FindVehicleByID", mock.Anything, existing.ID.Hex()).Return(existing, nil)
	mockVehicles.On("DeleteVehicle", mock.Anything, existing.ID.Hex()).Return(nil)

	req := httptest.NewRequest("DELETE", "/api/vehicles?id="+existing.ID.Hex(), nil)
	req = withClaims(req, testClaims(userID))
	w := httptest.NewRecorder()

	handler.HandleVehicles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockVehicles.AssertExpectations(t)
}

func TestVehicleHandler_ListError(t *testing.T) {
	mockVehicles := new(MockVehicleCollection)
	handler := NewVehicleHandler(mockVehicles)

	userID := primitive.NewObjectID().Hex()
	mockVehicles.On("FindVehicles", mock.Anything, bson.M{"user_id": userID}).Return(nil, errors.New("connection lost"))

	req := httptest.NewRequest("GET", "/api/vehicles", nil)
	req = withClaims(req, testClaims(userID))
	w := httptest.NewRecorder()

	handler.HandleVehicles(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
