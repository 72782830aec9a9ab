package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/scheduler"
	"github.com/veydev/autocare/internal/settings"
)

// StatusHandler exposes the background evaluation state for the caller
type StatusHandler struct {
	sched  *scheduler.Scheduler
	syncer *settings.Syncer
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sched *scheduler.Scheduler, syncer *settings.Syncer) *StatusHandler {
	return &StatusHandler{
		sched:  sched,
		syncer: syncer,
	}
}

// CronStatusResponse is the body of GET /api/cron/status
type CronStatusResponse struct {
	Registered        bool                 `json:"registered"`
	SettingsSynced    bool                 `json:"settings_synced"`
	LastRun           *time.Time           `json:"last_run,omitempty"`
	LastNotifications map[string]time.Time `json:"last_notifications,omitempty"`
}

// CronStatus handles GET /api/cron/status
func (h *StatusHandler) CronStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	response := CronStatusResponse{
		Registered:        h.sched.IsRegistered(claims.UserID),
		SettingsSynced:    h.syncer.Synced(claims.UserID),
		LastNotifications: h.sched.LastNotifications(claims.UserID),
	}
	if lastRun, ok := h.sched.LastRun(claims.UserID); ok {
		response.LastRun = &lastRun
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RegisterCron handles POST /api/cron/register
func (h *StatusHandler) RegisterCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	if err := h.sched.Register(claims.UserID); err != nil {
		http.Error(w, "Failed to register scheduled evaluation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"registered": true})
}

// UnregisterCron handles POST /api/cron/unregister
func (h *StatusHandler) UnregisterCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	h.sched.Unregister(claims.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"registered": false})
}
