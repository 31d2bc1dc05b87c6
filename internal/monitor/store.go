package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/zsiec/screenwatch/internal/gamestate"
)

// Entry is the latest outcome of one detector.
type Entry struct {
	Record    gamestate.StateRecord `json:"record,omitempty"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Store keeps the latest record per detector. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Put records a successful analysis.
func (s *Store) Put(detector string, rec gamestate.StateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[detector] = Entry{Record: rec, UpdatedAt: time.Now()}
}

// PutError records a failed analysis and keeps the previous record.
func (s *Store) PutError(detector string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[detector]
	e.Error = err.Error()
	e.UpdatedAt = time.Now()
	s.entries[detector] = e
}

// Get returns the entry for detector.
func (s *Store) Get(detector string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[detector]
	return e, ok
}

// Snapshot copies all entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Names returns the detectors with an entry, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for k := range s.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
