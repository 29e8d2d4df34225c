// Package inmem provides an in-memory implementation of coord.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (for example features/coord/redis).
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/agentwarden/warden/runtime/coord"
)

type (
	// Store is an in-memory implementation of coord.Store. It is safe for
	// concurrent use so tests can overlap a "run" goroutine with an external
	// signalling goroutine.
	Store struct {
		mu     sync.Mutex
		values map[string]valueEntry
		sets   map[string]map[string]struct{}
		lists  map[string][]string

		// now is injectable for expiry tests.
		now func() time.Time
	}

	valueEntry struct {
		value     string
		expiresAt time.Time
	}
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		values: make(map[string]valueEntry),
		sets:   make(map[string]map[string]struct{}),
		lists:  make(map[string][]string),
		now:    time.Now,
	}
}

// SetClock overrides the store clock. Test hook for TTL expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get implements coord.Store.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok {
		return "", coord.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.values, key)
		return "", coord.ErrNotFound
	}
	return e.value, nil
}

// Set implements coord.Store.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := valueEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = e
	return nil
}

// Delete implements coord.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// SetAdd implements coord.Store.
func (s *Store) SetAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// SetRemove implements coord.Store.
func (s *Store) SetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(s.sets, key)
		}
	}
	return nil
}

// SetMembers implements coord.Store.
func (s *Store) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out, nil
}

// ListPush implements coord.Store.
func (s *Store) ListPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	return nil
}

// ListPopAll implements coord.Store.
func (s *Store) ListPopAll(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.lists[key]
	delete(s.lists, key)
	return entries, nil
}

// Compile-time check that Store implements coord.Store.
var _ coord.Store = (*Store)(nil)
