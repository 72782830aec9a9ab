package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// MaintenanceRecord represents one historical service event on a vehicle.
// Description doubles as the service-type grouping key for due projections.
type MaintenanceRecord struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           string             `json:"user_id" bson:"user_id"`
	VehicleID        string             `json:"vehicle_id" bson:"vehicle_id"`
	Description      string             `json:"description" bson:"description"`
	ServiceDate      time.Time          `json:"service_date" bson:"service_date"`
	MileageAtService int                `json:"mileage_at_service" bson:"mileage_at_service"` // in kilometers
	IntervalDistance int                `json:"interval_distance" bson:"interval_distance"`   // renewal interval in kilometers
	IntervalMonths   int                `json:"interval_months" bson:"interval_months"`       // renewal interval in calendar months
	Cost             float64            `json:"cost" bson:"cost"`
	Comment          string             `json:"comment" bson:"comment"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" bson:"updated_at"`
}
