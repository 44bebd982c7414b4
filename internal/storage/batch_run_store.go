package storage

import (
	"context"
	"time"
)

// BatchRun records one completed normalization batch.
type BatchRun struct {
	BatchID               string
	StartedAt             time.Time
	FinishedAt            time.Time
	RecordsIn             int
	RecordsNormalized     int
	RecordsQuarantined    int
	DuplicatesDropped     int
	InstrumentsFailed     int
	OutputFingerprint     string // sha256 over canonical normalized output
	SymbolSnapshotVersion string
	Cancelled             bool
}

// BatchRunStore persists batch history.
// This enables a later run to prove it reproduced an earlier run's output.
type BatchRunStore interface {
	// Insert records a run. Returns ErrDuplicateKey if batch_id exists.
	Insert(ctx context.Context, run *BatchRun) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, batchID string) (*BatchRun, error)

	// GetLatest returns the most recently finished run.
	// Returns ErrNotFound if no run has been recorded yet.
	GetLatest(ctx context.Context) (*BatchRun, error)
}
