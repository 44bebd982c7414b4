package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eod-normalizer/internal/dedup"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/normalization"
	"eod-normalizer/internal/orchestrator"
	"eod-normalizer/internal/storage"
	"eod-normalizer/internal/storage/memory"
	"eod-normalizer/internal/symbols"
	"eod-normalizer/internal/validation"
)

var (
	// ErrBatchNotFound is returned when the batch id doesn't exist.
	ErrBatchNotFound = errors.New("batch run not found")

	// ErrNothingToReplay is returned when no raw records fall in the range.
	ErrNothingToReplay = errors.New("no raw records in range")
)

// ReplayVerifier re-runs stored raw records with the given reference data
// into a scratch store and compares the result with the stored output.
// The stored output is never written.
type ReplayVerifier struct {
	rawStore        storage.RawRecordStore
	normalizedStore storage.NormalizedRecordStore
	batchRunStore   storage.BatchRunStore

	validator *validation.Validator
	snapshot  *symbols.Snapshot
	timelines normalization.TimelineSource
	calendar  *domain.TradingCalendar
	dedup     *dedup.Deduplicator
	workers   int
	logger    *slog.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RawStore        storage.RawRecordStore
	NormalizedStore storage.NormalizedRecordStore // stored output under test
	BatchRunStore   storage.BatchRunStore         // optional, for VerifyBatch

	Validator    *validation.Validator
	Snapshot     *symbols.Snapshot
	Timelines    normalization.TimelineSource
	Calendar     *domain.TradingCalendar
	Deduplicator *dedup.Deduplicator
	Workers      int
	Logger       *slog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	v := &ReplayVerifier{
		rawStore:        opts.RawStore,
		normalizedStore: opts.NormalizedStore,
		batchRunStore:   opts.BatchRunStore,
		validator:       opts.Validator,
		snapshot:        opts.Snapshot,
		timelines:       opts.Timelines,
		calendar:        opts.Calendar,
		dedup:           opts.Deduplicator,
		workers:         opts.Workers,
		logger:          opts.Logger,
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// VerifyRange replays raw records ingested within [start, end] and compares
// the output with the stored rows for the same instruments and trade dates.
func (v *ReplayVerifier) VerifyRange(ctx context.Context, start, end time.Time) (*VerificationReport, error) {
	replay, err := v.replay(ctx, start, end)
	if err != nil {
		return nil, err
	}

	stored, err := v.storedFor(ctx, replay.Records)
	if err != nil {
		return nil, err
	}

	report := CompareSets(stored, replay.Records)
	for _, f := range replay.FailedInstruments {
		report.FailedInstruments = append(report.FailedInstruments, f.InstrumentID)
	}

	v.logger.Info("replay verification complete",
		"records", report.TotalRecords,
		"matched", report.MatchedRecords,
		"divergent", report.DivergentRecords,
		"failed_instruments", len(report.FailedInstruments),
		"fingerprint_match", report.StoredFingerprint == report.ReplayedFingerprint)

	return report, nil
}

// VerifyBatch is VerifyRange plus a check of the replayed fingerprint against
// the one recorded for batchID. An empty batchID uses the latest run.
func (v *ReplayVerifier) VerifyBatch(ctx context.Context, batchID string, start, end time.Time) (*VerificationReport, error) {
	if v.batchRunStore == nil {
		return nil, errors.New("verification: no batch run store configured")
	}

	var run *storage.BatchRun
	var err error
	if batchID == "" {
		run, err = v.batchRunStore.GetLatest(ctx)
	} else {
		run, err = v.batchRunStore.GetByID(ctx, batchID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch run: %w", err)
	}

	report, err := v.VerifyRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	report.BatchFingerprint = run.OutputFingerprint
	return report, nil
}

// replay runs the pipeline into a scratch store. Quarantine and batch
// history are not written.
func (v *ReplayVerifier) replay(ctx context.Context, start, end time.Time) (*orchestrator.RunResult, error) {
	if v.rawStore == nil {
		return nil, errors.New("verification: no raw record store configured")
	}
	raws, err := v.rawStore.GetByIngestTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load raw records: %w", err)
	}
	if len(raws) == 0 {
		return nil, ErrNothingToReplay
	}

	orch := orchestrator.New(orchestrator.Options{
		Validator:       v.validator,
		Snapshot:        v.snapshot,
		Timelines:       v.timelines,
		Calendar:        v.calendar,
		Deduplicator:    v.dedup,
		NormalizedStore: memory.NewNormalizedRecordStore(),
		Workers:         v.workers,
		Logger:          v.logger,
	})

	result, err := orch.Run(ctx, raws)
	if err != nil {
		return nil, fmt.Errorf("replay batch: %w", err)
	}
	return result, nil
}

// storedFor loads stored rows of the replayed instruments within the
// replayed trade-date span of each instrument.
func (v *ReplayVerifier) storedFor(ctx context.Context, replayed []*domain.NormalizedRecord) ([]*domain.NormalizedRecord, error) {
	type span struct{ first, last time.Time }
	spans := make(map[string]*span)
	var ids []string
	for _, r := range replayed {
		sp, ok := spans[r.InstrumentID]
		if !ok {
			spans[r.InstrumentID] = &span{first: r.TradeDate, last: r.TradeDate}
			ids = append(ids, r.InstrumentID)
			continue
		}
		if r.TradeDate.Before(sp.first) {
			sp.first = r.TradeDate
		}
		if r.TradeDate.After(sp.last) {
			sp.last = r.TradeDate
		}
	}

	var stored []*domain.NormalizedRecord
	for _, id := range ids {
		records, err := v.normalizedStore.GetByInstrument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load stored records for %s: %w", id, err)
		}
		sp := spans[id]
		for _, r := range records {
			if r.TradeDate.Before(sp.first) || r.TradeDate.After(sp.last) {
				continue
			}
			stored = append(stored, r)
		}
	}
	normalization.SortNormalized(stored)
	return stored, nil
}
