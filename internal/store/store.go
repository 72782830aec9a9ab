// Package store is the local JSON cache for per-user state that must survive
// restarts even when the remote store is unreachable: notification settings
// and last-dispatch timestamps.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/veydev/autocare/internal/models"
)

// Version is the current on-disk envelope version. Older envelopes unmarshal
// into the same struct with missing fields zeroed, so upgrades are silent.
const Version = 2

type envelope struct {
	Version    int                                     `json:"version"`
	Settings   map[string]models.NotificationSettings `json:"settings"`
	Dispatches map[string]time.Time                    `json:"dispatches"` // keyed "userID/vehicleID"
}

// Store is a file-backed state cache. It is read once at open; every mutation
// writes the whole envelope back.
type Store struct {
	mu   sync.Mutex
	path string
	data envelope
}

// Open loads the cache file at path. A missing or malformed file falls back
// to an empty state and never fails startup.
func Open(path string) *Store {
	s := &Store{path: path}
	s.data = envelope{
		Version:    Version,
		Settings:   make(map[string]models.NotificationSettings),
		Dispatches: make(map[string]time.Time),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("Failed to read state cache, starting empty")
		}
		return s
	}

	var loaded envelope
	if err := json.Unmarshal(raw, &loaded); err != nil {
		log.WithError(err).WithField("path", path).Warn("Malformed state cache, starting empty")
		return s
	}

	if loaded.Settings != nil {
		s.data.Settings = loaded.Settings
	}
	if loaded.Dispatches != nil {
		s.data.Dispatches = loaded.Dispatches
	}
	return s
}

// Settings returns the cached notification settings for a user.
func (s *Store) Settings(userID string) (models.NotificationSettings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.data.Settings[userID]
	return settings, ok
}

// SaveSettings caches a user's settings and persists immediately.
func (s *Store) SaveSettings(userID string, settings models.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Settings[userID] = settings
	return s.save()
}

// LastDispatch returns the cached last-dispatch timestamp for a user+vehicle pair.
func (s *Store) LastDispatch(userID, vehicleID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.data.Dispatches[dispatchKey(userID, vehicleID)]
	return ts, ok
}

// SaveDispatch caches a dispatch timestamp and persists immediately.
func (s *Store) SaveDispatch(userID, vehicleID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Dispatches[dispatchKey(userID, vehicleID)] = ts
	return s.save()
}

func dispatchKey(userID, vehicleID string) string {
	return userID + "/" + vehicleID
}

// save writes the envelope atomically. Caller holds the lock.
func (s *Store) save() error {
	s.data.Version = Version
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state cache: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write state cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state cache: %w", err)
	}
	return nil
}
