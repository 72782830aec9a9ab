package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// ChatMessage is one entry of a user's diagnostic chat transcript.
type ChatMessage struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Role      string             `json:"role" bson:"role"` // "user" or "assistant"
	Text      string             `json:"text" bson:"text"`
	HasImage  bool               `json:"has_image" bson:"has_image"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
