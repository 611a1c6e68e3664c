package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a signature or pool stays seen.
const DefaultTTL = 3 * time.Minute

// SeenSet is a TTL-bounded set of keys.
type SeenSet interface {
	// Add marks key as seen and reports whether it was new. A key whose TTL
	// has elapsed counts as new again.
	Add(ctx context.Context, key string) (bool, error)
}

// sweeper is implemented by sets that need explicit eviction.
type sweeper interface {
	Sweep(now time.Time) int
}

// MemorySeenSet is an in-process SeenSet.
type MemorySeenSet struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time // key -> first seen
}

// NewMemorySeenSet creates a set with the given TTL. Zero uses DefaultTTL.
func NewMemorySeenSet(ttl time.Duration) *MemorySeenSet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySeenSet{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Add marks key as seen.
func (s *MemorySeenSet) Add(_ context.Context, key string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if at, ok := s.entries[key]; ok && now.Sub(at) < s.ttl {
		return false, nil
	}
	s.entries[key] = now
	return true, nil
}

// Sweep evicts expired keys and returns how many were removed.
func (s *MemorySeenSet) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, at := range s.entries {
		if now.Sub(at) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired ones included until swept.
func (s *MemorySeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops every key.
func (s *MemorySeenSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
}
