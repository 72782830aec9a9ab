package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// VehicleHandler handles the per-user garage CRUD
type VehicleHandler struct {
	vehicles db.VehicleCollection
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicles db.VehicleCollection) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

// HandleVehicles dispatches /api/vehicles by method. Single-vehicle
// operations take the id as a query parameter.
func (h *VehicleHandler) HandleVehicles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("id") != "" {
			h.getVehicle(w, r)
			return
		}
		h.listVehicles(w, r)
	case http.MethodPost:
		h.createVehicle(w, r)
	case http.MethodPut:
		h.updateVehicle(w, r)
	case http.MethodDelete:
		h.deleteVehicle(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *VehicleHandler) listVehicles(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	cursor, err := h.vehicles.FindVehicles(r.Context(), bson.M{"user_id": claims.UserID})
	if err != nil {
		http.Error(w, "Failed to fetch vehicles", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(r.Context())

	vehicles := []models.Vehicle{}
	if err := cursor.All(r.Context(), &vehicles); err != nil {
		http.Error(w, "Failed to decode vehicles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicles)
}

func (h *VehicleHandler) getVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), r.URL.Query().Get("id"))
	if err != nil || vehicle.UserID != claims.UserID {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}

func (h *VehicleHandler) createVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var vehicle models.Vehicle
	if err := json.Unmarshal(body, &vehicle); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if vehicle.Make == "" || vehicle.Model == "" {
		http.Error(w, "Make and model are required", http.StatusBadRequest)
		return
	}
	if vehicle.Odometer < 0 {
		http.Error(w, "Odometer cannot be negative", http.StatusBadRequest)
		return
	}

	vehicle.UserID = claims.UserID
	vehicle.CreatedAt = time.Now()
	vehicle.UpdatedAt = time.Now()

	id, err := h.vehicles.InsertVehicle(r.Context(), vehicle)
	if err != nil {
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (h *VehicleHandler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Vehicle id is required", http.StatusBadRequest)
		return
	}

	existing, err := h.vehicles.FindVehicleByID(r.Context(), id)
	if err != nil || existing.UserID != claims.UserID {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var vehicle models.Vehicle
	if err := json.Unmarshal(body, &vehicle); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if vehicle.Odometer < 0 {
		http.Error(w, "Odometer cannot be negative", http.StatusBadRequest)
		return
	}

	// Ownership and creation time are not client-writable
	vehicle.ID = existing.ID
	vehicle.UserID = existing.UserID
	vehicle.CreatedAt = existing.CreatedAt
	vehicle.UpdatedAt = time.Now()

	if err := h.vehicles.UpdateVehicle(r.Context(), id, vehicle); err != nil {
		http.Error(w, "Failed to update vehicle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}

func (h *VehicleHandler) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Vehicle id is required", http.StatusBadRequest)
		return
	}

	existing, err := h.vehicles.FindVehicleByID(r.Context(), id)
	if err != nil || existing.UserID != claims.UserID {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	if err := h.vehicles.DeleteVehicle(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete vehicle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Vehicle deleted"})
}
