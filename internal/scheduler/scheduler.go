// Package scheduler runs the server-side alert re-evaluation on a cron
// cadence for users that opted in.
package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultSpec evaluates every registered user daily at 09:00 server time.
const DefaultSpec = "0 9 * * *"

// EvaluateFunc runs the project-classify-gate-dispatch pipeline for one user.
type EvaluateFunc func(ctx context.Context, userID string) error

// Scheduler owns per-user cron registrations and the bookkeeping the status
// endpoint reports.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	evaluate EvaluateFunc

	mu           sync.Mutex
	entries      map[string]cron.EntryID
	lastRun      map[string]time.Time
	lastNotified map[string]map[string]time.Time // user -> vehicle -> timestamp
}

// New creates a scheduler. The cron spec comes from ALERT_CRON_SPEC with a
// daily default.
func New(evaluate EvaluateFunc) *Scheduler {
	spec := os.Getenv("ALERT_CRON_SPEC")
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		cron:         cron.New(),
		spec:         spec,
		evaluate:     evaluate,
		entries:      make(map[string]cron.EntryID),
		lastRun:      make(map[string]time.Time),
		lastNotified: make(map[string]map[string]time.Time),
	}
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop; running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Register adds a user to the scheduled evaluation. Registering twice is a no-op.
func (s *Scheduler) Register(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[userID]; ok {
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, func() {
		s.runUser(userID)
	})
	if err != nil {
		return err
	}
	s.entries[userID] = id
	log.WithFields(log.Fields{"user_id": userID, "spec": s.spec}).Info("Registered scheduled alert evaluation")
	return nil
}

// Unregister removes a user from the schedule.
func (s *Scheduler) Unregister(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[userID]; ok {
		s.cron.Remove(id)
		delete(s.entries, userID)
	}
}

// IsRegistered reports whether a user has a scheduled evaluation.
func (s *Scheduler) IsRegistered(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// LastRun returns when a user's evaluation last ran.
func (s *Scheduler) LastRun(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.lastRun[userID]
	return ts, ok
}

// RecordNotification notes that a scheduled run notified about a vehicle.
func (s *Scheduler) RecordNotification(userID, vehicleID string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastNotified[userID] == nil {
		s.lastNotified[userID] = make(map[string]time.Time)
	}
	s.lastNotified[userID][vehicleID] = ts
}

// LastNotifications returns a copy of the per-vehicle notification timestamps.
func (s *Scheduler) LastNotifications(userID string) map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.lastNotified[userID]))
	for vehicleID, ts := range s.lastNotified[userID] {
		out[vehicleID] = ts
	}
	return out
}

func (s *Scheduler) runUser(userID string) {
	s.mu.Lock()
	s.lastRun[userID] = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.evaluate(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Scheduled alert evaluation failed")
	}
}
