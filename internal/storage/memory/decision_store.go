package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu     sync.RWMutex
	events []*domain.DecisionEvent
	ids    map[string]struct{}
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		ids: make(map[string]struct{}),
	}
}

// Insert appends one event. Returns ErrDuplicateKey if the event id exists.
func (s *DecisionStore) Insert(_ context.Context, e *domain.DecisionEvent) error {
	if e == nil || e.ID == "" || e.Code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	copy.FailedFilters = append([]string(nil), e.FailedFilters...)
	s.events = append(s.events, &copy)
	s.ids[e.ID] = struct{}{}
	return nil
}

// GetByPool retrieves all events of a pool, ordered by time ASC.
func (s *DecisionStore) GetByPool(_ context.Context, poolID string) ([]*domain.DecisionEvent, error) {
	return s.filter(func(e *domain.DecisionEvent) bool {
		return e.PoolID == poolID
	}), nil
}

// GetByCode retrieves events with the given code within [start, end].
func (s *DecisionStore) GetByCode(_ context.Context, code string, start, end time.Time) ([]*domain.DecisionEvent, error) {
	return s.filter(func(e *domain.DecisionEvent) bool {
		return e.Code == code && !e.Time.Before(start) && !e.Time.After(end)
	}), nil
}

// Len returns the number of stored events.
func (s *DecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *DecisionStore) filter(match func(*domain.DecisionEvent) bool) []*domain.DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecisionEvent
	for _, e := range s.events {
		if match(e) {
			copy := *e
			result = append(result, &copy)
		}
	}

	// stable keeps insertion order for equal timestamps
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result
}

var _ storage.DecisionStore = (*DecisionStore)(nil)
