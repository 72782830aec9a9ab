package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/settings"
	"github.com/veydev/autocare/internal/store"
)

// SettingsHandler handles notification threshold reads and writes. Writes
// land in the local store immediately and reach the remote store through the
// debounced syncer.
type SettingsHandler struct {
	settings db.SettingsCollection
	local    *store.Store
	syncer   *settings.Syncer
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(col db.SettingsCollection, local *store.Store, syncer *settings.Syncer) *SettingsHandler {
	return &SettingsHandler{
		settings: col,
		local:    local,
		syncer:   syncer,
	}
}

// HandleSettings dispatches /api/settings by method
func (h *SettingsHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut:
		h.updateSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	resolved := settings.Resolve(r.Context(), h.settings, h.local, claims.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolved)
}

func (h *SettingsHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var updated models.NotificationSettings
	if err := json.Unmarshal(body, &updated); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if updated.WarningThresholdDistance < 0 || updated.WarningThresholdDays < 0 ||
		updated.CriticalThresholdDistance < 0 || updated.CriticalThresholdDays < 0 {
		http.Error(w, "Thresholds cannot be negative", http.StatusBadRequest)
		return
	}

	// Local write is immediate so the next evaluation in this process sees
	// the new thresholds even if the remote flush is still pending.
	if h.local != nil {
		if err := h.local.SaveSettings(claims.UserID, updated); err != nil {
			log.WithError(err).Warn("Failed to cache settings locally")
		}
	}
	h.syncer.Queue(claims.UserID, updated)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"settings": updated,
		"synced":   h.syncer.Synced(claims.UserID),
	})
}
