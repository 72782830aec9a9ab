package models

import "time"

// Severity classifies how urgently a service is due.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort rank of a severity; lower sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// MaintenanceAlert is the projected due-state for one service type.
// It is derived on every evaluation and never persisted.
type MaintenanceAlert struct {
	Description       string    `json:"description"`
	RecordID          string    `json:"record_id"` // latest record the projection derives from
	IntervalDistance  int       `json:"interval_distance"`
	NextDueDistance   int       `json:"next_due_distance"`
	NextDueDate       time.Time `json:"next_due_date"`
	DistanceRemaining int       `json:"distance_remaining"` // negative means overdue
	DaysRemaining     int       `json:"days_remaining"`     // negative means overdue
	ResourcePercent   float64   `json:"resource_percent"`
	Severity          Severity  `json:"severity"`
}
