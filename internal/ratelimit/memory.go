package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expires) {
		e = &memoryEntry{expires: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Sweep drops expired counters and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live and expired counters held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweeper is a store that can drop expired counters.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
