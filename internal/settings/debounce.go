// Package settings coalesces rapid notification-settings edits into a single
// remote write per quiet period.
package settings

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/models"
)

// DefaultDelay is the quiet period before a pending edit is flushed remotely.
const DefaultDelay = 2 * time.Second

// FlushFunc persists one user's settings to the remote store.
type FlushFunc func(ctx context.Context, userID string, settings models.NotificationSettings) error

// Syncer is a pending-write-plus-timer state machine: every edit replaces the
// pending value and resets the timer; when the timer fires the pending value
// is flushed once. A failed flush keeps the pending value so the next edit or
// explicit Flush retries it.
type Syncer struct {
	mu      sync.Mutex
	delay   time.Duration
	flush   FlushFunc
	pending map[string]models.NotificationSettings
	timers  map[string]*time.Timer
}

// NewSyncer creates a syncer flushing through fn after delay of inactivity.
func NewSyncer(delay time.Duration, fn FlushFunc) *Syncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Syncer{
		delay:   delay,
		flush:   fn,
		pending: make(map[string]models.NotificationSettings),
		timers:  make(map[string]*time.Timer),
	}
}

// Queue records an edit and (re)arms the flush timer for that user.
func (s *Syncer) Queue(userID string, settings models.NotificationSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[userID] = settings
	if timer, ok := s.timers[userID]; ok {
		timer.Stop()
	}
	s.timers[userID] = time.AfterFunc(s.delay, func() {
		s.flushUser(userID)
	})
}

// Flush pushes a user's pending settings immediately, if any.
func (s *Syncer) Flush(userID string) {
	s.mu.Lock()
	if timer, ok := s.timers[userID]; ok {
		timer.Stop()
		delete(s.timers, userID)
	}
	s.mu.Unlock()
	s.flushUser(userID)
}

// Synced reports whether a user has no pending unflushed edit.
func (s *Syncer) Synced(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, dirty := s.pending[userID]
	return !dirty
}

// Close stops all timers and flushes everything still pending.
func (s *Syncer) Close() {
	s.mu.Lock()
	users := make([]string, 0, len(s.pending))
	for userID := range s.pending {
		users = append(users, userID)
	}
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, userID := range users {
		s.flushUser(userID)
	}
}

func (s *Syncer) flushUser(userID string) {
	s.mu.Lock()
	settings, ok := s.pending[userID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.flush(context.Background(), userID, settings); err != nil {
		// Keep the pending value for the next edit-triggered attempt.
		log.WithError(err).WithField("user_id", userID).Warn("Settings sync failed, will retry")
		return
	}

	s.mu.Lock()
	// Clear only if no newer edit arrived while flushing.
	if current, stillPending := s.pending[userID]; stillPending && current == settings {
		delete(s.pending, userID)
		if timer, hasTimer := s.timers[userID]; hasTimer {
			timer.Stop()
			delete(s.timers, userID)
		}
	}
	s.mu.Unlock()
}
