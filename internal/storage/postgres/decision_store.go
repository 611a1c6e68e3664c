package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// DecisionStore implements storage.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `
	id, code, ts, dex, pool_id, mint, signature, filter, reason,
	token_name, token_symbol, failed_filters, duration_us`

// Insert adds one event. Returns ErrDuplicateKey if the event id exists.
func (s *DecisionStore) Insert(ctx context.Context, e *domain.DecisionEvent) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("postgres", "insert_decision", time.Since(start).Seconds(), err)
	}(time.Now())

	if e == nil || e.ID == "" || e.Code == "" {
		return storage.ErrInvalidInput
	}

	failed := e.FailedFilters
	if failed == nil {
		failed = []string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO decision_events (`+decisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		e.ID, e.Code, e.Time, e.Dex, e.PoolID, e.Mint, e.Signature, e.Filter, e.Reason,
		e.TokenName, e.TokenSymbol, failed, e.Duration.Microseconds(),
	)
	if err != nil {
		return translate(err, "insert decision event")
	}
	return nil
}

// GetByPool retrieves all events of a pool, ordered by ts ASC.
func (s *DecisionStore) GetByPool(ctx context.Context, poolID string) ([]*domain.DecisionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+decisionColumns+`
		FROM decision_events
		WHERE pool_id = $1
		ORDER BY ts ASC, id ASC
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("query decision events by pool: %w", err)
	}
	return collectDecisions(rows)
}

// GetByCode retrieves events with the given code within [start, end], ordered by ts ASC.
func (s *DecisionStore) GetByCode(ctx context.Context, code string, start, end time.Time) ([]*domain.DecisionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+decisionColumns+`
		FROM decision_events
		WHERE code = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC, id ASC
	`, code, start, end)
	if err != nil {
		return nil, fmt.Errorf("query decision events by code: %w", err)
	}
	return collectDecisions(rows)
}

func collectDecisions(rows pgx.Rows) ([]*domain.DecisionEvent, error) {
	defer rows.Close()

	var result []*domain.DecisionEvent
	for rows.Next() {
		var (
			e          domain.DecisionEvent
			durationUs int64
		)
		err := rows.Scan(
			&e.ID, &e.Code, &e.Time, &e.Dex, &e.PoolID, &e.Mint, &e.Signature, &e.Filter, &e.Reason,
			&e.TokenName, &e.TokenSymbol, &e.FailedFilters, &durationUs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision event: %w", err)
		}
		e.Duration = time.Duration(durationUs) * time.Microsecond
		result = append(result, &e)
	}
	return result, rows.Err()
}
