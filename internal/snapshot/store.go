package snapshot

import (
	"sync"
	"time"

	"github.com/kjstillabower/weather-ticker/internal/models"
)

// Store is the single snapshot slot. The scheduler is its only writer; the status
// server reads it from another goroutine. Snapshots are replaced whole, so a reader
// sees either the previous value or the new one.
type Store struct {
	mu      sync.RWMutex
	current *models.WeatherSnapshot
}

func NewStore() *Store {
	return &Store{}
}

// Load returns the current snapshot, or nil before the first successful fetch.
// Callers must not modify it.
func (s *Store) Load() *models.WeatherSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace installs snap. A nil snap is ignored so a failed parse can never blank the slot.
func (s *Store) Replace(snap *models.WeatherSnapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}

// Age returns how long ago the current snapshot was fetched, and false when there is none.
func (s *Store) Age(now time.Time) (time.Duration, bool) {
	snap := s.Load()
	if snap == nil || snap.FetchedAt.IsZero() {
		return 0, false
	}
	return now.Sub(snap.FetchedAt), true
}
