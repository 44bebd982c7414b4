package storage

import (
	"context"
	"time"

	"eod-normalizer/internal/domain"
)

// RawRecordStore provides access to raw_records storage.
type RawRecordStore interface {
	// InsertBulk adds multiple raw records atomically. Fails entire batch on any duplicate event_id.
	InsertBulk(ctx context.Context, records []*domain.RawRecord) error

	// GetByEventID retrieves a raw record by event_id. Returns ErrNotFound if not exists.
	GetByEventID(ctx context.Context, eventID string) (*domain.RawRecord, error)

	// GetByIngestTimeRange retrieves records ingested within [start, end] (inclusive),
	// ordered by event_id ASC.
	GetByIngestTimeRange(ctx context.Context, start, end time.Time) ([]*domain.RawRecord, error)
}

// SymbolMasterStore provides access to symbol_master storage.
// Rows are versioned SCD Type 2: rows are never updated except to close them.
type SymbolMasterStore interface {
	// Insert adds a new entry. Returns ErrDuplicateKey if
	// (instrument_id, exchange, symbol, valid_from) exists.
	Insert(ctx context.Context, e *domain.SymbolMasterEntry) error

	// GetAll retrieves every entry, open and closed,
	// ordered by (exchange, symbol, valid_from, instrument_id).
	GetAll(ctx context.Context) ([]*domain.SymbolMasterEntry, error)

	// GetOpen retrieves entries with no valid_to.
	GetOpen(ctx context.Context) ([]*domain.SymbolMasterEntry, error)

	// ApplyChanges closes toClose entries at validTo and inserts toOpen entries atomically.
	// Returns ErrNotFound if an entry to close is missing or already closed.
	ApplyChanges(ctx context.Context, toClose []*domain.SymbolMasterEntry, validTo time.Time, toOpen []*domain.SymbolMasterEntry) error
}

// CorporateActionStore provides access to corporate_action_events storage.
// Append-only: events are never edited or deleted.
type CorporateActionStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if action_id exists.
	Insert(ctx context.Context, e *domain.CorporateActionEvent) error

	// GetByID retrieves an event by action_id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, actionID string) (*domain.CorporateActionEvent, error)

	// GetByInstrument retrieves events for an instrument,
	// ordered by (ex_date, sequence, action_id) ASC.
	GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.CorporateActionEvent, error)

	// GetAll retrieves every event, ordered by (instrument_id, ex_date, sequence, action_id) ASC.
	GetAll(ctx context.Context) ([]*domain.CorporateActionEvent, error)

	// GetNeedsReview retrieves events flagged for manual review, ordered like GetAll.
	GetNeedsReview(ctx context.Context) ([]*domain.CorporateActionEvent, error)
}

// NormalizedRecordStore provides access to normalized_records storage.
// Unlike the append-only stores, rows are recomputable and replace by
// (instrument_id, trade_date).
type NormalizedRecordStore interface {
	// Upsert writes records, replacing any existing row with the same (instrument_id, trade_date).
	// Returns ErrDuplicateKey if the batch itself repeats a key.
	Upsert(ctx context.Context, records []*domain.NormalizedRecord) error

	// GetByInstrument retrieves records for an instrument, ordered by trade_date ASC.
	GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.NormalizedRecord, error)

	// GetByDateRange retrieves records with trade_date within [start, end] (inclusive),
	// ordered by (instrument_id, trade_date) ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.NormalizedRecord, error)
}

// QuarantineStore provides access to quarantine_records storage. Never auto-deleted.
type QuarantineStore interface {
	// Insert adds a quarantine record. Returns ErrDuplicateKey if quarantine_id exists.
	Insert(ctx context.Context, q *domain.QuarantineRecord) error

	// GetByEventID retrieves all quarantine records for an event, ordered by quarantined_at ASC.
	GetByEventID(ctx context.Context, eventID string) ([]*domain.QuarantineRecord, error)

	// GetByReason retrieves all records with a reason code, ordered by (quarantined_at, quarantine_id) ASC.
	GetByReason(ctx context.Context, reasonCode string) ([]*domain.QuarantineRecord, error)

	// GetByTimeRange retrieves records quarantined within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.QuarantineRecord, error)
}
