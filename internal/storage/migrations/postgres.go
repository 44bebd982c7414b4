package migrations

import (
	"context"
	"fmt"

	"eod-normalizer/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order and
// returns the applied file names. Every file uses IF NOT EXISTS or
// CREATE OR REPLACE, so re-running is safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := readSQLFiles(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, f := range files {
		// No arguments: pgx uses the simple protocol, which accepts multi-statement files.
		if _, err := pool.Exec(ctx, f.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
		applied = append(applied, f.Name)
	}
	return applied, nil
}
