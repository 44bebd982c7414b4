package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eod-normalizer/internal/corpaction"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
	"eod-normalizer/internal/symbols"
)

// Manager moves upstream inputs into storage.
// It enforces deterministic ordering and makes re-ingestion of the same file a no-op.
type Manager struct {
	rawSource    RawRecordSource
	symbolSource SymbolMasterSource
	noticeSource NoticeSource

	rawStore    storage.RawRecordStore
	symbolStore storage.SymbolMasterStore
	ingestor    *corpaction.Ingestor

	logger *slog.Logger
	now    func() time.Time
}

// ManagerOptions contains configuration for creating a Manager.
// A source without its store (or ingestor) makes the matching method a no-op.
type ManagerOptions struct {
	RawSource    RawRecordSource
	SymbolSource SymbolMasterSource
	NoticeSource NoticeSource

	RawStore    storage.RawRecordStore
	SymbolStore storage.SymbolMasterStore
	Ingestor    *corpaction.Ingestor

	Logger *slog.Logger
	Now    func() time.Time
}

// NewManager creates a new ingestion manager with the provided sources and stores.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		rawSource:    opts.RawSource,
		symbolSource: opts.SymbolSource,
		noticeSource: opts.NoticeSource,
		rawStore:     opts.RawStore,
		symbolStore:  opts.SymbolStore,
		ingestor:     opts.Ingestor,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// RawIngestResult summarizes one raw record ingestion.
type RawIngestResult struct {
	Fetched    int
	Inserted   int
	Duplicates int // event ids already stored or repeated in the input
}

// IngestRawRecords fetches raw records and stores the ones not seen before.
// Records without an ingest time are stamped with the current time.
// Order: (ingest_time ASC, event_id ASC); the first of repeated event ids wins.
func (m *Manager) IngestRawRecords(ctx context.Context) (*RawIngestResult, error) {
	result := &RawIngestResult{}
	if m.rawSource == nil || m.rawStore == nil {
		return result, nil
	}

	records, err := m.rawSource.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch raw records: %w", err)
	}
	result.Fetched = len(records)
	if len(records) == 0 {
		return result, nil
	}

	stamp := m.now().UTC()
	for _, r := range records {
		if r.IngestTime.IsZero() {
			r.IngestTime = stamp
		}
	}

	// Enforce deterministic ordering
	SortRawRecords(records)

	fresh := make([]*domain.RawRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.EventID]; dup {
			result.Duplicates++
			continue
		}
		seen[r.EventID] = struct{}{}

		_, err := m.rawStore.GetByEventID(ctx, r.EventID)
		switch {
		case err == nil:
			result.Duplicates++
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("check event %s: %w", r.EventID, err)
		}
		fresh = append(fresh, r)
	}

	if err := m.rawStore.InsertBulk(ctx, fresh); err != nil {
		return nil, fmt.Errorf("store raw records: %w", err)
	}
	result.Inserted = len(fresh)

	m.logger.InfoContext(ctx, "raw records ingested",
		slog.Int("fetched", result.Fetched),
		slog.Int("inserted", result.Inserted),
		slog.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

// RefreshSymbolMaster applies the source listing to the symbol master as of asOf.
func (m *Manager) RefreshSymbolMaster(ctx context.Context, asOf time.Time) (*symbols.RefreshPlan, error) {
	if m.symbolSource == nil || m.symbolStore == nil {
		return &symbols.RefreshPlan{}, nil
	}

	listing, err := m.symbolSource.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch symbol master: %w", err)
	}

	plan, err := symbols.Refresh(ctx, m.symbolStore, listing, asOf)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "symbol master refreshed",
		slog.String("as_of", domain.FormatDate(asOf)),
		slog.Int("listed", len(listing)),
		slog.Int("closed", len(plan.Close)),
		slog.Int("opened", len(plan.Open)),
		slog.Int("unchanged", plan.Unchanged),
	)
	return plan, nil
}

// IngestNotices fetches notices, orders them and appends the parsed events.
func (m *Manager) IngestNotices(ctx context.Context, snap *symbols.Snapshot) (*corpaction.IngestResult, error) {
	if m.noticeSource == nil || m.ingestor == nil {
		return &corpaction.IngestResult{}, nil
	}

	notices, err := m.noticeSource.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch notices: %w", err)
	}

	// Enforce deterministic ordering
	SortNotices(notices)

	return m.ingestor.Ingest(ctx, snap, notices)
}
