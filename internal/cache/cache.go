// Package cache implements the process-local TTL store that shields
// read-heavy catalog endpoints from repeated queries.  It is never a source
// of truth: state is lost on restart and is local to one process.
package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	// evictThreshold is the map size past which Set starts sweeping.
	evictThreshold = 1000
	// evictBatch bounds how many expired entries one Set call removes.
	evictBatch = 100
)

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// Store is a coarse-grained in-memory cache.  One mutex guards every
// operation; entries expire lazily on Get and opportunistically on Set.
type Store struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time // overridable for tests
}

// New returns an empty Store.
func New() *Store {
	return &Store{m: make(map[string]entry), now: time.Now}
}

// Get returns the value for key if it exists and has not outlived its TTL.
// An expired entry is deleted on the spot and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.insertedAt) >= e.ttl {
		delete(s.m, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with its own TTL.  Once the map grows past
// evictThreshold, each Set also sweeps up to evictBatch expired entries so
// sustained miss-then-set churn cannot grow the map without bound.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.m[key] = entry{value: value, insertedAt: now, ttl: ttl}
	if len(s.m) <= evictThreshold {
		return
	}
	removed := 0
	for k, e := range s.m {
		if now.Sub(e.insertedAt) >= e.ttl {
			delete(s.m, k)
			removed++
			if removed >= evictBatch {
				break
			}
		}
	}
}

// InvalidatePrefix deletes every key containing the given substring.
// Callers invalidate whole logical namespaces (e.g. "user_buds_7") rather
// than individual keys, so the linear scan is intentional.
func (s *Store) InvalidatePrefix(substr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.m {
		if strings.Contains(k, substr) {
			delete(s.m, k)
		}
	}
}

// Clear drops everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]entry)
}

// Len reports the current number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
