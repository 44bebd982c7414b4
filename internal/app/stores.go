// Package app wires configuration, stores and reference data for the
// command-line entry points.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"eod-normalizer/internal/config"
	"eod-normalizer/internal/storage"
	chstore "eod-normalizer/internal/storage/clickhouse"
	"eod-normalizer/internal/storage/memory"
	"eod-normalizer/internal/storage/migrations"
	pgstore "eod-normalizer/internal/storage/postgres"
)

// Stores bundles every store a batch touches.
type Stores struct {
	Raw        storage.RawRecordStore
	Symbols    storage.SymbolMasterStore
	Actions    storage.CorporateActionStore
	Normalized storage.NormalizedRecordStore
	Quarantine storage.QuarantineStore
	BatchRuns  storage.BatchRunStore

	cleanup func()
}

// Close releases connections. Safe on memory stores.
func (s *Stores) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// NewMemoryStores creates all stores in memory.
func NewMemoryStores() *Stores {
	return &Stores{
		Raw:        memory.NewRawRecordStore(),
		Symbols:    memory.NewSymbolMasterStore(),
		Actions:    memory.NewCorporateActionStore(),
		Normalized: memory.NewNormalizedRecordStore(),
		Quarantine: memory.NewQuarantineStore(),
		BatchRuns:  memory.NewBatchRunStore(),
	}
}

// OpenStores creates the stores selected by cfg. PostgreSQL holds reference
// data, raw input, quarantine and batch history; ClickHouse holds the
// normalized output.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Stores, error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return NewMemoryStores(), nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres migrations applied", slog.Any("files", applied))
	}

	// ClickHouse
	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err == nil {
			logger.Info("clickhouse migrations applied")
		}
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	return &Stores{
		Raw:        pgstore.NewRawRecordStore(pool),
		Symbols:    pgstore.NewSymbolMasterStore(pool),
		Actions:    pgstore.NewCorporateActionStore(pool),
		Quarantine: pgstore.NewQuarantineStore(pool),
		BatchRuns:  pgstore.NewBatchRunStore(pool),
		Normalized: chstore.NewNormalizedRecordStore(chConn),
		cleanup: func() {
			chConn.Close()
			pool.Close()
		},
	}, nil
}
