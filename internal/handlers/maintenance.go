package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veydev/autocare/internal/alerts"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/settings"
	"github.com/veydev/autocare/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// MaintenanceHandler handles the service ledger and the derived due-state
type MaintenanceHandler struct {
	records  db.MaintenanceCollection
	vehicles db.VehicleCollection
	settings db.SettingsCollection
	local    *store.Store
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(records db.MaintenanceCollection, vehicles db.VehicleCollection, settings db.SettingsCollection, local *store.Store) *MaintenanceHandler {
	return &MaintenanceHandler{
		records:  records,
		vehicles: vehicles,
		settings: settings,
		local:    local,
	}
}

// HandleRecords dispatches /api/maintenance by method
func (h *MaintenanceHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRecords(w, r)
	case http.MethodPost:
		h.createRecord(w, r)
	case http.MethodPut:
		h.updateRecord(w, r)
	case http.MethodDelete:
		h.deleteRecord(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ownedVehicle resolves a vehicle id and checks it belongs to the caller.
func (h *MaintenanceHandler) ownedVehicle(r *http.Request, vehicleID string) (*models.Vehicle, *models.Claims, error) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return nil, nil, fmt.Errorf("user context not found")
	}
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil || vehicle.UserID != claims.UserID {
		return nil, claims, fmt.Errorf("vehicle not found")
	}
	return vehicle, claims, nil
}

func (h *MaintenanceHandler) loadRecords(r *http.Request, userID, vehicleID string) ([]models.MaintenanceRecord, error) {
	cursor, err := h.records.FindRecords(r.Context(), bson.M{"user_id": userID, "vehicle_id": vehicleID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(r.Context())

	records := []models.MaintenanceRecord{}
	if err := cursor.All(r.Context(), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (h *MaintenanceHandler) listRecords(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	_, claims, err := h.ownedVehicle(r, vehicleID)
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	records, err := h.loadRecords(r, claims.UserID, vehicleID)
	if err != nil {
		http.Error(w, "Failed to fetch records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *MaintenanceHandler) createRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var record models.MaintenanceRecord
	if err := json.Unmarshal(body, &record); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if record.VehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}
	if record.MileageAtService < 0 {
		http.Error(w, "Mileage cannot be negative", http.StatusBadRequest)
		return
	}

	_, claims, err := h.ownedVehicle(r, record.VehicleID)
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	record.UserID = claims.UserID
	if record.ServiceDate.IsZero() {
		record.ServiceDate = time.Now()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	id, err := h.records.InsertRecord(r.Context(), record)
	if err != nil {
		http.Error(w, "Failed to create record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (h *MaintenanceHandler) updateRecord(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Record id is required", http.StatusBadRequest)
		return
	}

	existing, err := h.records.FindRecordByID(r.Context(), id)
	if err != nil || existing.UserID != claims.UserID {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var record models.MaintenanceRecord
	if err := json.Unmarshal(body, &record); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if record.MileageAtService < 0 {
		http.Error(w, "Mileage cannot be negative", http.StatusBadRequest)
		return
	}

	record.ID = existing.ID
	record.UserID = existing.UserID
	record.VehicleID = existing.VehicleID
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()

	if err := h.records.UpdateRecord(r.Context(), id, record); err != nil {
		http.Error(w, "Failed to update record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (h *MaintenanceHandler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Record id is required", http.StatusBadRequest)
		return
	}

	existing, err := h.records.FindRecordByID(r.Context(), id)
	if err != nil || existing.UserID != claims.UserID {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}

	if err := h.records.DeleteRecord(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Record deleted"})
}

// AlertsResponse is the body of GET /api/alerts
type AlertsResponse struct {
	Alerts      []models.MaintenanceAlert `json:"alerts"`
	Counts      map[models.Severity]int   `json:"counts"`
	HasUrgent   bool                      `json:"has_urgent"`
	Odometer    int                       `json:"odometer"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// GetAlerts projects and ranks the due-state for one vehicle
func (h *MaintenanceHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	vehicle, claims, err := h.ownedVehicle(r, vehicleID)
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	records, err := h.loadRecords(r, claims.UserID, vehicleID)
	if err != nil {
		http.Error(w, "Failed to fetch records", http.StatusInternalServerError)
		return
	}

	userSettings := settings.Resolve(r.Context(), h.settings, h.local, claims.UserID)
	now := time.Now()

	projected := alerts.Project(records, vehicle.Odometer, now)
	ranked := alerts.Rank(projected, userSettings)
	if ranked == nil {
		ranked = []models.MaintenanceAlert{}
	}

	response := AlertsResponse{
		Alerts:      ranked,
		Counts:      alerts.CountBySeverity(ranked),
		HasUrgent:   alerts.HasUrgent(ranked),
		Odometer:    vehicle.Odometer,
		GeneratedAt: now,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ExportCSV streams the vehicle's service ledger as a CSV download
func (h *MaintenanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	vehicle, claims, err := h.ownedVehicle(r, vehicleID)
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	records, err := h.loadRecords(r, claims.UserID, vehicleID)
	if err != nil {
		http.Error(w, "Failed to fetch records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s-maintenance.csv", vehicle.Make, vehicle.Model))

	cw := csv.NewWriter(w)
	cw.Write([]string{"service_date", "description", "mileage_km", "interval_km", "interval_months", "cost", "comment"})
	for _, rec := range records {
		cw.Write([]string{
			rec.ServiceDate.Format("2006-01-02"),
			rec.Description,
			fmt.Sprintf("%d", rec.MileageAtService),
			fmt.Sprintf("%d", rec.IntervalDistance),
			fmt.Sprintf("%d", rec.IntervalMonths),
			fmt.Sprintf("%.2f", rec.Cost),
			rec.Comment,
		})
	}
	cw.Flush()
}
