package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eod-normalizer/internal/storage"
)

// BatchRunStore implements storage.BatchRunStore using PostgreSQL.
type BatchRunStore struct {
	pool *Pool
}

// NewBatchRunStore creates a new BatchRunStore.
func NewBatchRunStore(pool *Pool) *BatchRunStore {
	return &BatchRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BatchRunStore = (*BatchRunStore)(nil)

const batchRunColumns = `
	batch_id, started_at, finished_at, records_in, records_normalized, records_quarantined,
	duplicates_dropped, instruments_failed, output_fingerprint, symbol_snapshot_version, cancelled
`

// Insert records a run. Returns ErrDuplicateKey if batch_id exists.
func (s *BatchRunStore) Insert(ctx context.Context, run *storage.BatchRun) (err error) {
	if run == nil || run.BatchID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("batch_runs.insert", start, err) }(time.Now())

	query := `
		INSERT INTO batch_runs (` + batchRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		run.BatchID,
		run.StartedAt,
		run.FinishedAt,
		run.RecordsIn,
		run.RecordsNormalized,
		run.RecordsQuarantined,
		run.DuplicatesDropped,
		run.InstrumentsFailed,
		run.OutputFingerprint,
		run.SymbolSnapshotVersion,
		run.Cancelled,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert batch run: %w", err)
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *BatchRunStore) GetByID(ctx context.Context, batchID string) (*storage.BatchRun, error) {
	query := `SELECT ` + batchRunColumns + ` FROM batch_runs WHERE batch_id = $1`
	return s.get(ctx, "batch_runs.get_by_id", query, batchID)
}

// GetLatest returns the most recently finished run.
func (s *BatchRunStore) GetLatest(ctx context.Context) (*storage.BatchRun, error) {
	query := `
		SELECT ` + batchRunColumns + `
		FROM batch_runs
		ORDER BY finished_at DESC, batch_id DESC
		LIMIT 1
	`
	return s.get(ctx, "batch_runs.get_latest", query)
}

func (s *BatchRunStore) get(ctx context.Context, op, query string, args ...any) (run *storage.BatchRun, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	run, err = scanBatchRun(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get batch run: %w", err)
	}
	return run, nil
}

func scanBatchRun(row pgx.Row) (*storage.BatchRun, error) {
	var r storage.BatchRun
	err := row.Scan(
		&r.BatchID,
		&r.StartedAt,
		&r.FinishedAt,
		&r.RecordsIn,
		&r.RecordsNormalized,
		&r.RecordsQuarantined,
		&r.DuplicatesDropped,
		&r.InstrumentsFailed,
		&r.OutputFingerprint,
		&r.SymbolSnapshotVersion,
		&r.Cancelled,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
