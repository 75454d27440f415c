package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Construct one per process (or per
// test) and pass it in explicitly; there is no package-level instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	clock   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source. Used by tests to control expiry.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]Entry),
		clock:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the entry for key, or (nil, nil) on a miss. Expired entries
// are evicted and reported as misses. Hits increment the entry's hit count.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if e.Expired(s.clock()) {
		delete(s.entries, key)
		return nil, nil
	}

	e.HitCount++
	s.entries[key] = e
	return &e, nil
}

// Put stores the entry, replacing any previous value for its key.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
