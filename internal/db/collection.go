package db

import (
	"context"

	"github.com/veydev/autocare/internal/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cursor defines the interface for cursor operations shared by all collections.
type Cursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (string, error)
	FindVehicles(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error
	DeleteVehicle(ctx context.Context, id string) error
}

// MaintenanceCollection defines the interface for maintenance ledger operations.
type MaintenanceCollection interface {
	InsertRecord(ctx context.Context, record models.MaintenanceRecord) (string, error)
	FindRecords(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error)
	FindRecordByID(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	UpdateRecord(ctx context.Context, id string, record models.MaintenanceRecord) error
	DeleteRecord(ctx context.Context, id string) error
}

// SettingsCollection defines the interface for notification settings storage.
type SettingsCollection interface {
	UpsertSettings(ctx context.Context, userID string, settings models.NotificationSettings) error
	FindSettings(ctx context.Context, userID string) (*models.UserSettings, error)
}

// DispatchCollection defines the interface for last-dispatch timestamp storage.
type DispatchCollection interface {
	FindDispatchState(ctx context.Context, userID, vehicleID string) (*models.DispatchState, error)
	UpsertDispatchState(ctx context.Context, state models.DispatchState) error
}

// ChatCollection defines the interface for diagnostic chat transcripts.
type ChatCollection interface {
	InsertMessage(ctx context.Context, message models.ChatMessage) error
	FindMessages(ctx context.Context, userID string, limit int64) ([]models.ChatMessage, error)
	DeleteMessages(ctx context.Context, userID string) error
}
