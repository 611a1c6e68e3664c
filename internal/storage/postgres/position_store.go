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

// PositionStore implements storage.PositionStore using PostgreSQL.
// Every status a position reaches is also appended to position_transitions.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	id, variant, pool_id, base_mint, quote_mint, lp_mint, pool_signature, pool_slot, detected_at,
	buy_tx_id, buy_price, quote_amount, token_amount, opened_at,
	sell_tx_id, sell_price, closed_at, status`

// Insert adds a new position. Returns ErrDuplicateKey if the id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.TradingPosition) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("postgres", "insert_position", time.Since(start).Seconds(), err)
	}(time.Now())

	if p == nil || p.ID == "" || !p.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18
		)
	`,
		p.ID, string(p.Pool.Variant), p.Pool.PoolID, p.Pool.BaseMint, p.Pool.QuoteMint, p.Pool.LPMint,
		p.Pool.Signature, p.Pool.Slot, p.Pool.DetectedAt,
		p.BuyTxID, int64(p.BuyPrice), int64(p.QuoteAmount), int64(p.TokenAmount), p.OpenedAt,
		p.SellTxID, int64(p.SellPrice), nullTime(p.ClosedAt), string(p.Status),
	)
	if err != nil {
		return translate(err, "insert position")
	}

	if err := appendTransition(ctx, tx, p.ID, p.Status); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Update overwrites a stored position. The stored status is locked and checked
// so concurrent writers cannot move a position backwards.
func (s *PositionStore) Update(ctx context.Context, p *domain.TradingPosition) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("postgres", "update_position", time.Since(start).Seconds(), err)
	}(time.Now())

	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM positions WHERE id = $1 FOR UPDATE`, p.ID).Scan(&current)
	if err != nil {
		return translate(err, "lock position")
	}

	old := domain.PositionStatus(current)
	if !old.Allows(p.Status) {
		return storage.ErrInvalidInput
	}

	_, err = tx.Exec(ctx, `
		UPDATE positions SET
			buy_tx_id = $2, buy_price = $3, quote_amount = $4, token_amount = $5,
			sell_tx_id = $6, sell_price = $7, closed_at = $8, status = $9,
			updated_at = NOW()
		WHERE id = $1
	`,
		p.ID,
		p.BuyTxID, int64(p.BuyPrice), int64(p.QuoteAmount), int64(p.TokenAmount),
		p.SellTxID, int64(p.SellPrice), nullTime(p.ClosedAt), string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	if old != p.Status {
		if err := appendTransition(ctx, tx, p.ID, p.Status); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.TradingPosition, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		return nil, translate(err, "get position")
	}
	return p, nil
}

// GetOpen retrieves all positions not yet sold or abandoned, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.TradingPosition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE status NOT IN ('sold', 'abandoned')
		ORDER BY opened_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradingPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Transitions returns the statuses a position has reached, oldest first.
func (s *PositionStore) Transitions(ctx context.Context, id string) ([]domain.PositionStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status FROM position_transitions
		WHERE position_id = $1
		ORDER BY at ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var result []domain.PositionStatus
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		result = append(result, domain.PositionStatus(status))
	}
	return result, rows.Err()
}

func appendTransition(ctx context.Context, tx pgx.Tx, id string, status domain.PositionStatus) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO position_transitions (position_id, status, at)
		VALUES ($1, $2, clock_timestamp())
		ON CONFLICT (position_id, status) DO NOTHING
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func scanPosition(row pgx.Row) (*domain.TradingPosition, error) {
	var (
		p                                             domain.TradingPosition
		variant, status                               string
		buyPrice, quoteAmount, tokenAmount, sellPrice int64
		closedAt                                      *time.Time
	)
	err := row.Scan(
		&p.ID, &variant, &p.Pool.PoolID, &p.Pool.BaseMint, &p.Pool.QuoteMint, &p.Pool.LPMint,
		&p.Pool.Signature, &p.Pool.Slot, &p.Pool.DetectedAt,
		&p.BuyTxID, &buyPrice, &quoteAmount, &tokenAmount, &p.OpenedAt,
		&p.SellTxID, &sellPrice, &closedAt, &status,
	)
	if err != nil {
		return nil, err
	}

	p.Pool.Variant = domain.DexVariant(variant)
	p.Status = domain.PositionStatus(status)
	p.BuyPrice = uint64(buyPrice)
	p.QuoteAmount = uint64(quoteAmount)
	p.TokenAmount = uint64(tokenAmount)
	p.SellPrice = uint64(sellPrice)
	if closedAt != nil {
		p.ClosedAt = *closedAt
	}
	return &p, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
