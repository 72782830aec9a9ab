package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// NotificationSettings holds per-user alert thresholds and the auto-notify switch.
type NotificationSettings struct {
	AutoNotifyEnabled         bool `json:"auto_notify_enabled" bson:"auto_notify_enabled"`
	WarningThresholdDistance  int  `json:"warning_threshold_distance" bson:"warning_threshold_distance"` // in kilometers
	WarningThresholdDays      int  `json:"warning_threshold_days" bson:"warning_threshold_days"`
	CriticalThresholdDistance int  `json:"critical_threshold_distance" bson:"critical_threshold_distance"`
	CriticalThresholdDays     int  `json:"critical_threshold_days" bson:"critical_threshold_days"`
}

// DefaultNotificationSettings returns the thresholds used before a user changes anything:
// warning inside 1500 km or 30 days, critical once overdue.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		AutoNotifyEnabled:         true,
		WarningThresholdDistance:  1500,
		WarningThresholdDays:      30,
		CriticalThresholdDistance: 0,
		CriticalThresholdDays:     0,
	}
}

// UserSettings is the stored form of NotificationSettings, keyed by user.
type UserSettings struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID    string               `json:"user_id" bson:"user_id"`
	Settings  NotificationSettings `json:"settings" bson:"settings"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}
