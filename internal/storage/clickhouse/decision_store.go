package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// DecisionStore implements storage.DecisionStore using ClickHouse.
// It is the analytics sink for filter timings and decision codes.
type DecisionStore struct {
	conn *Conn
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(conn *Conn) *DecisionStore {
	return &DecisionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `id, code, ts, dex, pool_id, mint, signature, filter, reason,
	token_name, token_symbol, failed_filters, duration_us`

// Insert adds one event. MergeTree does not enforce uniqueness, so the id is
// checked first. Returns ErrDuplicateKey if it exists.
func (s *DecisionStore) Insert(ctx context.Context, e *domain.DecisionEvent) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("clickhouse", "insert_decision", time.Since(start).Seconds(), err)
	}(time.Now())

	if e == nil || e.ID == "" || e.Code == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO decision_events (`+decisionColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	failed := e.FailedFilters
	if failed == nil {
		failed = []string{}
	}
	err = batch.Append(
		e.ID, e.Code, e.Time.UTC(), e.Dex, e.PoolID, e.Mint, e.Signature, e.Filter, e.Reason,
		e.TokenName, e.TokenSymbol, failed, uint64(e.Duration.Microseconds()),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPool retrieves all events of a pool, ordered by ts ASC.
func (s *DecisionStore) GetByPool(ctx context.Context, poolID string) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decision_events
		WHERE pool_id = ?
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetByCode retrieves events with the given code within [start, end], ordered by ts ASC.
func (s *DecisionStore) GetByCode(ctx context.Context, code string, start, end time.Time) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decision_events
		WHERE code = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, code, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by code: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// FilterStats is the aggregate outcome of one filter.
type FilterStats struct {
	Filter      string
	Passed      uint64
	Failed      uint64
	AvgDuration time.Duration
}

// FilterStats aggregates FILTER_PASS and FILTER_FAIL events since the given time.
func (s *DecisionStore) FilterStats(ctx context.Context, since time.Time) ([]FilterStats, error) {
	query := `
		SELECT
			filter,
			countIf(code = 'FILTER_PASS') AS passed,
			countIf(code = 'FILTER_FAIL') AS failed,
			avg(duration_us) AS avg_us
		FROM decision_events
		WHERE filter != '' AND code IN ('FILTER_PASS', 'FILTER_FAIL') AND ts >= ?
		GROUP BY filter
		ORDER BY filter ASC
	`

	rows, err := s.conn.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query filter stats: %w", err)
	}
	defer rows.Close()

	var stats []FilterStats
	for rows.Next() {
		var (
			st    FilterStats
			avgUs float64
		)
		if err := rows.Scan(&st.Filter, &st.Passed, &st.Failed, &avgUs); err != nil {
			return nil, fmt.Errorf("scan filter stats row: %w", err)
		}
		st.AvgDuration = time.Duration(avgUs) * time.Microsecond
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filter stats rows: %w", err)
	}
	return stats, nil
}

// exists checks if an event with the given id exists.
func (s *DecisionStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM decision_events WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows used by the scanners.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanDecisions(rows chRows) ([]*domain.DecisionEvent, error) {
	var events []*domain.DecisionEvent

	for rows.Next() {
		var (
			e          domain.DecisionEvent
			durationUs uint64
		)
		err := rows.Scan(
			&e.ID, &e.Code, &e.Time, &e.Dex, &e.PoolID, &e.Mint, &e.Signature, &e.Filter, &e.Reason,
			&e.TokenName, &e.TokenSymbol, &e.FailedFilters, &durationUs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		e.Duration = time.Duration(durationUs) * time.Microsecond
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}

	return events, nil
}
