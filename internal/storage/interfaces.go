package storage

import (
	"context"
	"time"

	"solana-pool-sniper/internal/domain"
)

// PositionStore journals trading positions. Each position is stored once and
// then moved forward through its lifecycle.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, p *domain.TradingPosition) error

	// Update overwrites a stored position. Returns ErrNotFound if the id does
	// not exist and ErrInvalidInput if the status would move backwards.
	Update(ctx context.Context, p *domain.TradingPosition) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TradingPosition, error)

	// GetOpen retrieves all positions not yet sold or abandoned, ordered by OpenedAt ASC.
	GetOpen(ctx context.Context) ([]*domain.TradingPosition, error)
}

// DecisionStore is an append-only journal of decision events.
// It satisfies events.Sink.
type DecisionStore interface {
	// Insert adds one event. Returns ErrDuplicateKey if the event id exists.
	Insert(ctx context.Context, e *domain.DecisionEvent) error

	// GetByPool retrieves all events of a pool, ordered by time ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.DecisionEvent, error)

	// GetByCode retrieves events with the given code within [start, end], ordered by time ASC.
	GetByCode(ctx context.Context, code string, start, end time.Time) ([]*domain.DecisionEvent, error)
}
