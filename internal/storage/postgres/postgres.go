// Package postgres journals positions and decision events in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"solana-pool-sniper/internal/storage"
)

// Pool sizing for the journal. Writers are the trader and the event sinks,
// both short statements, so a small pool suffices.
const (
	DefaultMaxConns       = 8
	DefaultConnectTimeout = 10 * time.Second
)

// Pool wraps pgxpool.Pool so stores can be handed one connection pool.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption tunes the parsed pool config before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) { c.MaxConns = n }
}

// NewPool connects to dsn and pings the server once. Options override the
// defaults and anything set in the dsn.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = DefaultMaxConns
	cfg.ConnConfig.ConnectTimeout = DefaultConnectTimeout
	cfg.ConnConfig.RuntimeParams["application_name"] = "solana-pool-sniper"
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// SQLSTATE codes mapped onto storage errors.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeForeignKey      = "23503"
)

// translate maps driver errors onto the storage sentinels and wraps anything
// else with op.
func translate(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return storage.ErrDuplicateKey
		case codeCheckViolation, codeForeignKey:
			return fmt.Errorf("%s: %w: %s", op, storage.ErrInvalidInput, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
