package migrations

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres applies every postgres script not yet listed in schema_migrations.
// Each script runs in its own transaction together with its ledger row, so a
// failed script leaves no partial schema behind.
func Postgres(ctx context.Context, db *pgxpool.Pool, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	list, err := scripts("postgres")
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, postgresLedger); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, s := range list {
		err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, s.name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil // already applied
			}
			applied++
			_, err = tx.Exec(ctx, s.sql)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply postgres migration %s: %w", s.name, err)
		}
	}
	logger.Printf("[migrations] postgres: %d of %d scripts applied", applied, len(list))
	return nil
}
