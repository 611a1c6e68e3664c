package migrations

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Clickhouse runs every clickhouse script statement by statement. The scripts
// only use IF NOT EXISTS forms, so reruns are harmless and no ledger is kept.
func Clickhouse(ctx context.Context, conn driver.Conn, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	list, err := scripts("clickhouse")
	if err != nil {
		return err
	}

	n := 0
	for _, s := range list {
		stmts, err := statements(s.sql)
		if err != nil {
			return fmt.Errorf("clickhouse migration %s: %w", s.name, err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply clickhouse migration %s: %w", s.name, err)
			}
			n++
		}
	}
	logger.Printf("[migrations] clickhouse: %d statements from %d scripts", n, len(list))
	return nil
}
