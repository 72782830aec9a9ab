package alerts

import (
	"sort"

	"github.com/veydev/autocare/internal/models"
)

// Classify assigns a severity to one alert. Rules are checked in order and
// the first match wins: critical, then warning, then ok. An alert projected
// from a non-positive distance interval is always critical.
func Classify(alert models.MaintenanceAlert, settings models.NotificationSettings) models.Severity {
	if alert.IntervalDistance <= 0 {
		return models.SeverityCritical
	}
	if alert.DistanceRemaining <= settings.CriticalThresholdDistance ||
		alert.DaysRemaining <= settings.CriticalThresholdDays {
		return models.SeverityCritical
	}
	if alert.DistanceRemaining <= settings.WarningThresholdDistance ||
		alert.DaysRemaining <= settings.WarningThresholdDays {
		return models.SeverityWarning
	}
	return models.SeverityOK
}

// Rank classifies every alert and returns them ordered critical first,
// then warning, then ok. The sort is stable: within a severity the incoming
// relative order is preserved.
func Rank(in []models.MaintenanceAlert, settings models.NotificationSettings) []models.MaintenanceAlert {
	out := make([]models.MaintenanceAlert, len(in))
	copy(out, in)
	for i := range out {
		out[i].Severity = Classify(out[i], settings)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

// Urgent filters to warning and critical alerts.
func Urgent(in []models.MaintenanceAlert) []models.MaintenanceAlert {
	var out []models.MaintenanceAlert
	for _, a := range in {
		if a.Severity == models.SeverityCritical || a.Severity == models.SeverityWarning {
			out = append(out, a)
		}
	}
	return out
}

// HasUrgent reports whether any alert is warning or critical.
func HasUrgent(in []models.MaintenanceAlert) bool {
	return len(Urgent(in)) > 0
}

// CountBySeverity returns per-severity counts for badge display.
func CountBySeverity(in []models.MaintenanceAlert) map[models.Severity]int {
	counts := make(map[models.Severity]int)
	for _, a := range in {
		counts[a.Severity]++
	}
	return counts
}
