package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/obd"
)

// TelemetryHandler serves the latest OBD snapshot for a vehicle
type TelemetryHandler struct {
	cache    *obd.Cache
	vehicles db.VehicleCollection
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(cache *obd.Cache, vehicles db.VehicleCollection) *TelemetryHandler {
	return &TelemetryHandler{
		cache:    cache,
		vehicles: vehicles,
	}
}

// GetTelemetry handles GET /api/telemetry
func (h *TelemetryHandler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil || vehicle.UserID != claims.UserID {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	snapshot, ok := h.cache.Latest(vehicleID)
	if !ok {
		http.Error(w, "No telemetry for vehicle", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
