package alerts

import (
	"time"

	"github.com/veydev/autocare/internal/models"
)

// DispatchWindow is the minimum gap between proactive notifications for the
// same (user, vehicle) pair.
const DispatchWindow = 24 * time.Hour

// AllowDispatch decides whether a proactive notification may be sent.
// It permits dispatch only when there is at least one urgent alert, the user
// has auto-notify enabled, and no dispatch happened within the last 24 hours.
// lastDispatchAt is nil when no dispatch was ever recorded.
func AllowDispatch(in []models.MaintenanceAlert, settings models.NotificationSettings, lastDispatchAt *time.Time, now time.Time) bool {
	if !settings.AutoNotifyEnabled {
		return false
	}
	if !HasUrgent(in) {
		return false
	}
	if lastDispatchAt == nil {
		return true
	}
	return now.Sub(*lastDispatchAt) >= DispatchWindow
}
