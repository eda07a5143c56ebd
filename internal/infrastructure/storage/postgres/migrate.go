package postgres

import (
	"context"
	"fmt"

	"kardex/migrations"
	"kardex/pkg/logger"
)

// Migrate applies the embedded schema files in order. Statements are
// idempotent (CREATE ... IF NOT EXISTS), so running on every start is safe.
func Migrate(ctx context.Context, pool *Pool) error {
	files, err := migrations.Files()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, name := range files {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		logger.Debug(ctx, "migration applied", "file", name)
	}

	return nil
}
