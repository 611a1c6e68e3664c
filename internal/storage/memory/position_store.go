package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradingPosition // keyed by position id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.TradingPosition),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.TradingPosition) error {
	if p == nil || p.ID == "" || !p.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.ID] = &copy
	return nil
}

// Update overwrites a stored position.
func (s *PositionStore) Update(_ context.Context, p *domain.TradingPosition) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.data[p.ID]
	if !exists {
		return storage.ErrNotFound
	}
	if !old.Status.Allows(p.Status) {
		return storage.ErrInvalidInput
	}

	copy := *p
	s.data[p.ID] = &copy
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, id string) (*domain.TradingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetOpen retrieves all non-terminal positions, ordered by OpenedAt ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.TradingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradingPosition
	for _, p := range s.data {
		if !p.Status.IsTerminal() {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.Before(result[j].OpenedAt)
	})

	return result, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
