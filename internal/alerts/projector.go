package alerts

import (
	"sort"
	"time"

	"github.com/veydev/autocare/internal/models"
)

// DefaultGroup is the service-type group used for records with an empty description.
const DefaultGroup = "general service"

// Project turns a flat list of maintenance records into one projected
// due-state per service type. Records are grouped by description; within a
// group the latest record wins (by service date, then mileage at service,
// then record id). Pure function: now is injected and nothing is mutated.
func Project(records []models.MaintenanceRecord, currentOdometer int, now time.Time) []models.MaintenanceAlert {
	if len(records) == 0 {
		return nil
	}

	latest := make(map[string]models.MaintenanceRecord)
	for _, rec := range records {
		key := rec.Description
		if key == "" {
			key = DefaultGroup
		}
		cur, ok := latest[key]
		if !ok || newerRecord(rec, cur) {
			latest[key] = rec
		}
	}

	groups := make([]string, 0, len(latest))
	for key := range latest {
		groups = append(groups, key)
	}
	sort.Strings(groups)

	out := make([]models.MaintenanceAlert, 0, len(groups))
	for _, key := range groups {
		rec := latest[key]
		out = append(out, projectOne(key, rec, currentOdometer, now))
	}
	return out
}

// newerRecord reports whether a should replace b as the latest of its group.
func newerRecord(a, b models.MaintenanceRecord) bool {
	if !a.ServiceDate.Equal(b.ServiceDate) {
		return a.ServiceDate.After(b.ServiceDate)
	}
	if a.MileageAtService != b.MileageAtService {
		return a.MileageAtService > b.MileageAtService
	}
	return a.ID.Hex() > b.ID.Hex()
}

func projectOne(group string, rec models.MaintenanceRecord, currentOdometer int, now time.Time) models.MaintenanceAlert {
	nextDueDistance := rec.MileageAtService + rec.IntervalDistance
	nextDueDate := rec.ServiceDate.AddDate(0, rec.IntervalMonths, 0)

	alert := models.MaintenanceAlert{
		Description:       group,
		RecordID:          rec.ID.Hex(),
		IntervalDistance:  rec.IntervalDistance,
		NextDueDistance:   nextDueDistance,
		NextDueDate:       nextDueDate,
		DistanceRemaining: nextDueDistance - currentOdometer,
		DaysRemaining:     wholeDays(now, nextDueDate),
	}

	// A non-positive interval cannot yield a meaningful percentage; the
	// classifier treats it as immediately critical.
	if rec.IntervalDistance > 0 {
		pct := float64(alert.DistanceRemaining) / float64(rec.IntervalDistance) * 100
		alert.ResourcePercent = clampPercent(pct)
	}
	return alert
}

// wholeDays returns the whole days from now until due, negative when overdue.
func wholeDays(now, due time.Time) int {
	return int(due.Sub(now).Hours() / 24)
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
