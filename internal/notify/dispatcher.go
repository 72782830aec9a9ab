package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/alerts"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/store"
)

// Dispatcher decides whether an alert notification goes out and sends it.
// The gate decision itself lives in the alerts package; the dispatcher owns
// the timestamp bookkeeping around it.
type Dispatcher struct {
	relay    Relay
	dispatch db.DispatchCollection
	cache    *store.Store
	now      func() time.Time
}

// NewDispatcher wires a dispatcher. cache may be nil when no local state file
// is configured; now defaults to time.Now.
func NewDispatcher(relay Relay, dispatch db.DispatchCollection, cache *store.Store) *Dispatcher {
	return &Dispatcher{
		relay:    relay,
		dispatch: dispatch,
		cache:    cache,
		now:      time.Now,
	}
}

// Notify evaluates the dispatch gate for one user+vehicle and, when allowed,
// pushes the alert summary. Returns whether a message was sent. On send
// failure the last-dispatch timestamp is left untouched so a retry stays
// possible.
func (d *Dispatcher) Notify(ctx context.Context, user *models.User, vehicle *models.Vehicle, ranked []models.MaintenanceAlert, settings models.NotificationSettings) (bool, error) {
	lastDispatchAt := d.lastDispatch(ctx, user.ID.Hex(), vehicle.ID.Hex())
	now := d.now()

	if !alerts.AllowDispatch(ranked, settings, lastDispatchAt, now) {
		return false, nil
	}

	if user.TelegramID == 0 {
		log.WithField("user_id", user.ID.Hex()).Debug("Urgent alerts present but user has no Telegram chat linked")
		return false, nil
	}

	message := FormatAlerts(vehicle, alerts.Urgent(ranked))
	if err := d.relay.Send(ctx, user.TelegramID, message); err != nil {
		return false, fmt.Errorf("failed to dispatch notification: %w", err)
	}

	d.recordDispatch(ctx, user.ID.Hex(), vehicle.ID.Hex(), now)
	return true, nil
}

// lastDispatch returns the most recent timestamp the two stores know about.
// The local cache can run ahead of the remote store when a remote write
// failed, and vice versa after a restart on a fresh state file, so neither
// side alone is trustworthy.
func (d *Dispatcher) lastDispatch(ctx context.Context, userID, vehicleID string) *time.Time {
	var latest *time.Time
	if d.dispatch != nil {
		if state, err := d.dispatch.FindDispatchState(ctx, userID, vehicleID); err == nil {
			ts := state.LastDispatchAt
			latest = &ts
		}
	}
	if d.cache != nil {
		if ts, ok := d.cache.LastDispatch(userID, vehicleID); ok {
			if latest == nil || ts.After(*latest) {
				latest = &ts
			}
		}
	}
	return latest
}

// recordDispatch persists the new timestamp locally and, best-effort, remotely.
func (d *Dispatcher) recordDispatch(ctx context.Context, userID, vehicleID string, ts time.Time) {
	if d.cache != nil {
		if err := d.cache.SaveDispatch(userID, vehicleID, ts); err != nil {
			log.WithError(err).Warn("Failed to cache dispatch timestamp locally")
		}
	}
	if d.dispatch != nil {
		err := d.dispatch.UpsertDispatchState(ctx, models.DispatchState{
			UserID:         userID,
			VehicleID:      vehicleID,
			LastDispatchAt: ts,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to persist dispatch timestamp remotely")
		}
	}
}

// FormatAlerts renders the urgent alerts of one vehicle as a plain-text message.
func FormatAlerts(vehicle *models.Vehicle, urgent []models.MaintenanceAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Maintenance due for %s %s", vehicle.Make, vehicle.Model)
	if vehicle.Plate != "" {
		fmt.Fprintf(&b, " (%s)", vehicle.Plate)
	}
	b.WriteString(":\n")

	for _, a := range urgent {
		fmt.Fprintf(&b, "- [%s] %s: ", a.Severity, a.Description)
		if a.DistanceRemaining < 0 {
			fmt.Fprintf(&b, "%d km overdue", -a.DistanceRemaining)
		} else {
			fmt.Fprintf(&b, "due in %d km", a.DistanceRemaining)
		}
		if a.DaysRemaining < 0 {
			fmt.Fprintf(&b, ", %d days past due date", -a.DaysRemaining)
		} else {
			fmt.Fprintf(&b, ", %d days left", a.DaysRemaining)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
