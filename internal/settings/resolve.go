package settings

import (
	"context"

	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/store"
)

// Resolve loads a user's notification settings. The local cache wins: it is
// written synchronously on every edit, while the remote copy trails behind
// the debounced flush. The remote store only fills in when this process has
// never seen the user, and defaults cover a brand-new user.
func Resolve(ctx context.Context, col db.SettingsCollection, local *store.Store, userID string) models.NotificationSettings {
	if local != nil {
		if cached, ok := local.Settings(userID); ok {
			return cached
		}
	}
	if col != nil {
		if stored, err := col.FindSettings(ctx, userID); err == nil {
			return stored.Settings
		}
	}
	return models.DefaultNotificationSettings()
}
