package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// Vehicle represents a car tracked by a user.
type Vehicle struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Make      string             `bson:"make" json:"make"`
	Model     string             `bson:"model" json:"model"`
	Year      int                `bson:"year" json:"year"`
	VIN       string             `bson:"vin" json:"vin"`
	Engine    string             `bson:"engine" json:"engine"`
	Plate     string             `bson:"plate" json:"plate"`
	Odometer  int                `bson:"odometer" json:"odometer"` // current reading in kilometers
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
