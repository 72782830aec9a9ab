package handlers

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// withClaims attaches authenticated user claims the way the middleware does
func withClaims(r *http.Request, claims *models.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	return r.WithContext(ctx)
}

// fakeCursor is an in-memory db.Cursor over a pre-built slice
type fakeCursor struct {
	vehicles []models.Vehicle
	records  []models.MaintenanceRecord
}

func (c *fakeCursor) All(ctx context.Context, out interface{}) error {
	switch v := out.(type) {
	case *[]models.Vehicle:
		*v = append((*v)[:0], c.vehicles...)
	case *[]models.MaintenanceRecord:
		*v = append((*v)[:0], c.records...)
	}
	return nil
}

func (c *fakeCursor) Close(ctx context.Context) error { return nil }

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsers(ctx context.Context, filter bson.M) (*mongo.Cursor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.Cursor), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockVehicleCollection is a mock implementation of VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (string, error) {
	args := m.Called(ctx, vehicle)
	return args.String(0), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicles(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (db.Cursor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(db.Cursor), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error {
	args := m.Called(ctx, id, vehicle)
	return args.Error(0)
}

func (m *MockVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMaintenanceCollection is a mock implementation of MaintenanceCollection
type MockMaintenanceCollection struct {
	mock.Mock
}

func (m *MockMaintenanceCollection) InsertRecord(ctx context.Context, record models.MaintenanceRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockMaintenanceCollection) FindRecords(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (db.Cursor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(db.Cursor), args.Error(1)
}

func (m *MockMaintenanceCollection) FindRecordByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MaintenanceRecord), args.Error(1)
}

func (m *MockMaintenanceCollection) UpdateRecord(ctx context.Context, id string, record models.MaintenanceRecord) error {
	args := m.Called(ctx, id, record)
	return args.Error(0)
}

func (m *MockMaintenanceCollection) DeleteRecord(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSettingsCollection is a mock implementation of SettingsCollection
type MockSettingsCollection struct {
	mock.Mock
}

func (m *MockSettingsCollection) UpsertSettings(ctx context.Context, userID string, settings models.NotificationSettings) error {
	args := m.Called(ctx, userID, settings)
	return args.Error(0)
}

func (m *MockSettingsCollection) FindSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSettings), args.Error(1)
}

// MockChatCollection is a mock implementation of ChatCollection
type MockChatCollection struct {
	mock.Mock
}

func (m *MockChatCollection) InsertMessage(ctx context.Context, message models.ChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockChatCollection) FindMessages(ctx context.Context, userID string, limit int64) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockChatCollection) DeleteMessages(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
