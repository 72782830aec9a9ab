package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// DispatchState records the last proactive notification sent for a
// (user, vehicle) pair, so the 24-hour gate holds across sessions.
type DispatchState struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         string             `json:"user_id" bson:"user_id"`
	VehicleID      string             `json:"vehicle_id" bson:"vehicle_id"`
	LastDispatchAt time.Time          `json:"last_dispatch_at" bson:"last_dispatch_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}
