package ingestion

import (
	"context"

	"eod-normalizer/internal/domain"
)

// RawRecordSource provides raw end-of-day records from an upstream feed.
type RawRecordSource interface {
	// Fetch returns every record the source holds.
	// Records may be unordered; Manager enforces deterministic ordering.
	Fetch(ctx context.Context) ([]*domain.RawRecord, error)
}

// SymbolMasterSource provides a full listing of the symbol master.
type SymbolMasterSource interface {
	// Fetch returns the listing. Validity windows are assigned on refresh.
	Fetch(ctx context.Context) ([]*domain.SymbolMasterEntry, error)
}

// NoticeSource provides corporate-action notices.
type NoticeSource interface {
	// Fetch returns notices in any order; Manager sorts them before parsing.
	Fetch(ctx context.Context) ([]domain.RawNotice, error)
}
