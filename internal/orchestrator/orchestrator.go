// Package orchestrator runs one normalization batch.
// Flow: validate → resolve → dedupe → partition by instrument → adjust + persist
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eod-normalizer/internal/adjustment"
	"eod-normalizer/internal/dedup"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/idhash"
	"eod-normalizer/internal/normalization"
	"eod-normalizer/internal/observability"
	"eod-normalizer/internal/storage"
	"eod-normalizer/internal/symbols"
	"eod-normalizer/internal/validation"
)

// Orchestrator coordinates one batch. The symbol snapshot, timelines and
// calendar are frozen before Run and only read during it.
type Orchestrator struct {
	validator *validation.Validator
	snapshot  *symbols.Snapshot
	timelines normalization.TimelineSource
	calendar  *domain.TradingCalendar
	dedup     *dedup.Deduplicator
	engine    normalization.NormalizationEngine

	// Stores
	rawStore        storage.RawRecordStore
	normalizedStore storage.NormalizedRecordStore
	quarantineStore storage.QuarantineStore
	batchRunStore   storage.BatchRunStore

	workers int
	logger  *slog.Logger
	now     func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Frozen reference data
	Validator    *validation.Validator
	Snapshot     *symbols.Snapshot
	Timelines    normalization.TimelineSource // usually *adjustment.Engine after Load
	Calendar     *domain.TradingCalendar      // optional
	Deduplicator *dedup.Deduplicator
	Engine       normalization.NormalizationEngine // optional, defaults to a Runner over Timelines

	// Stores
	RawStore        storage.RawRecordStore // optional, required by RunStored
	NormalizedStore storage.NormalizedRecordStore
	QuarantineStore storage.QuarantineStore
	BatchRunStore   storage.BatchRunStore // optional

	// Options
	Workers int // partition parallelism, 0 = GOMAXPROCS
	Logger  *slog.Logger
	Now     func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		validator:       opts.Validator,
		snapshot:        opts.Snapshot,
		timelines:       opts.Timelines,
		calendar:        opts.Calendar,
		dedup:           opts.Deduplicator,
		engine:          opts.Engine,
		rawStore:        opts.RawStore,
		normalizedStore: opts.NormalizedStore,
		quarantineStore: opts.QuarantineStore,
		batchRunStore:   opts.BatchRunStore,
		workers:         opts.Workers,
		logger:          opts.Logger,
		now:             opts.Now,
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.dedup == nil {
		o.dedup = dedup.New(nil)
	}
	if o.engine == nil {
		o.engine = normalization.NewRunner(o.timelines, o.calendar, o.normalizedStore)
	}
	return o
}

// InstrumentFailure is an instrument excluded from this run's output.
type InstrumentFailure struct {
	InstrumentID string
	ReasonCode   string
	Records      int
	Err          error
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	BatchID           string
	RecordsIn         int
	Validated         int
	Resolved          int
	Dedup             dedup.Stats
	Instruments       int
	Records           []*domain.NormalizedRecord // ordered by (instrument_id, trade_date)
	Adjusted          int
	Quarantined       []*domain.QuarantineRecord
	FailedInstruments []InstrumentFailure
	Fingerprint       string
	Cancelled         bool
	Errors            []string
}

// Run executes the full batch over raws.
// Phases:
//  1. Validate each record (failures quarantined)
//  2. Resolve symbols against the frozen snapshot (failures quarantined)
//  3. Deduplicate across sources
//  4. Normalize each instrument partition on the worker pool
//  5. Fingerprint output and record the batch run
//
// A cancelled context skips partitions not yet started. Finished partitions
// stay persisted; Run returns the partial result with the context error.
func (o *Orchestrator) Run(ctx context.Context, raws []*domain.RawRecord) (*RunResult, error) {
	started := o.now().UTC()
	result := &RunResult{BatchID: uuid.NewString(), RecordsIn: len(raws)}
	logger := o.logger.With("batch_id", result.BatchID)
	observability.RecordReceived(len(raws))

	rawByEvent := make(map[string]*domain.RawRecord, len(raws))
	for _, r := range raws {
		rawByEvent[r.EventID] = r
	}

	// Phase 1: Validation
	phase := time.Now()
	validated := make([]*domain.ValidatedRecord, 0, len(raws))
	for _, raw := range raws {
		rec, q := o.validator.Validate(raw)
		if q != nil {
			o.quarantine(ctx, result, q)
			continue
		}
		observability.RecordValidated()
		validated = append(validated, rec)
	}
	result.Validated = len(validated)
	observability.RecordBatchPhase("validate", time.Since(phase).Seconds())
	logger.Info("phase 1: validation complete", "validated", result.Validated, "quarantined", len(result.Quarantined))

	// Phase 2: Resolution
	phase = time.Now()
	resolved := make([]*domain.ResolvedRecord, 0, len(validated))
	for _, rec := range validated {
		r, err := o.snapshot.ResolveRecord(rec)
		if err != nil {
			o.quarantine(ctx, result, o.resolutionQuarantine(rawByEvent[rec.EventID], rec, err))
			continue
		}
		observability.RecordResolved()
		resolved = append(resolved, r)
	}
	result.Resolved = len(resolved)
	observability.RecordBatchPhase("resolve", time.Since(phase).Seconds())
	logger.Info("phase 2: resolution complete",
		"resolved", result.Resolved, "snapshot_version", o.snapshot.Version())

	// Phase 3: Deduplication
	deduped, stats := o.dedup.Dedupe(resolved)
	// Same instrument reported on several exchanges without a security id.
	deduped, collapsed := o.dedup.Collapse(deduped)
	stats.Merge(collapsed)
	result.Dedup = stats
	observability.RecordDuplicatesDropped(stats.DroppedBySource)
	logger.Info("phase 3: dedup complete", "groups", stats.Groups, "duplicates_dropped", stats.DuplicatesDropped)

	// Phase 4: Per-instrument normalization
	phase = time.Now()
	partitions, ids := partition(deduped)
	result.Instruments = len(ids)
	o.runPartitions(ctx, logger, result, partitions, ids, rawByEvent)
	observability.RecordBatchPhase("normalize", time.Since(phase).Seconds())

	// Phase 5: Fingerprint and batch record
	normalization.SortNormalized(result.Records)
	result.Fingerprint = idhash.Fingerprint(result.Records)
	result.Cancelled = ctx.Err() != nil
	o.recordRun(result, started, logger)

	logger.Info("batch completed",
		"records_in", result.RecordsIn,
		"normalized", len(result.Records),
		"quarantined", len(result.Quarantined),
		"failed_instruments", len(result.FailedInstruments),
		"fingerprint", result.Fingerprint,
		"cancelled", result.Cancelled)

	if result.Cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// RunStored runs a batch over raw records ingested within [start, end].
func (o *Orchestrator) RunStored(ctx context.Context, start, end time.Time) (*RunResult, error) {
	if o.rawStore == nil {
		return nil, errors.New("orchestrator: no raw record store configured")
	}
	raws, err := o.rawStore.GetByIngestTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load raw records: %w", err)
	}
	return o.Run(ctx, raws)
}

func (o *Orchestrator) runPartitions(
	ctx context.Context,
	logger *slog.Logger,
	result *RunResult,
	partitions map[string][]*domain.ResolvedRecord,
	ids []string,
	rawByEvent map[string]*domain.RawRecord,
) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			records := partitions[id]
			start := time.Now()
			// A started partition runs to completion so its output is never half-written.
			res, err := o.engine.NormalizeInstrument(context.WithoutCancel(ctx), id, records)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := failureReason(err)
				result.FailedInstruments = append(result.FailedInstruments, InstrumentFailure{
					InstrumentID: id, ReasonCode: reason, Records: len(records), Err: err,
				})
				observability.RecordInstrumentFailed(reason)
				logger.Error("instrument excluded from output",
					"instrument_id", id, "reason", reason, "records", len(records), "error", err)
				for _, r := range records {
					o.quarantine(ctx, result, o.adjustmentQuarantine(rawByEvent[r.EventID], r, reason, err))
				}
				return nil
			}
			result.Records = append(result.Records, res.Records...)
			result.Adjusted += res.Adjusted
			observability.RecordInstrumentProcessed(len(res.Records), res.Adjusted, time.Since(start).Seconds())
			return nil
		})
	}
	// Workers never return errors; failures are isolated per instrument.
	_ = g.Wait()

	sort.Slice(result.FailedInstruments, func(i, j int) bool {
		return result.FailedInstruments[i].InstrumentID < result.FailedInstruments[j].InstrumentID
	})
}

// failureReason maps an instrument-fatal error to a quarantine reason code.
func failureReason(err error) string {
	switch {
	case errors.Is(err, adjustment.ErrInconsistentTimeline):
		return domain.ReasonInconsistentTimeline
	case errors.Is(err, normalization.ErrInvalidFactor), errors.Is(err, normalization.ErrDuplicateTradeDate),
		errors.Is(err, validation.ErrContractViolation):
		return domain.ReasonAdjustmentFailed
	default:
		return domain.ReasonStoreFailure
	}
}

// partition groups records by instrument and returns the ids in sorted order.
func partition(records []*domain.ResolvedRecord) (map[string][]*domain.ResolvedRecord, []string) {
	parts := make(map[string][]*domain.ResolvedRecord)
	for _, r := range records {
		parts[r.InstrumentID] = append(parts[r.InstrumentID], r)
	}
	ids := make([]string, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return parts, ids
}

// quarantine persists q and adds it to the result. Callers serialize access to result.
func (o *Orchestrator) quarantine(ctx context.Context, result *RunResult, q *domain.QuarantineRecord) {
	result.Quarantined = append(result.Quarantined, q)
	observability.RecordQuarantined(string(q.Stage), q.ReasonCode)
	if o.quarantineStore == nil {
		return
	}
	// Re-running a batch re-derives the same quarantine ids.
	if err := o.quarantineStore.Insert(context.WithoutCancel(ctx), q); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		result.Errors = append(result.Errors, fmt.Sprintf("quarantine %s: %v", q.EventID, err))
	}
}

func (o *Orchestrator) resolutionQuarantine(raw *domain.RawRecord, rec *domain.ValidatedRecord, err error) *domain.QuarantineRecord {
	reason := symbols.ReasonCode(err)
	ruleID := "resolution." + strings.ToLower(reason)
	return &domain.QuarantineRecord{
		QuarantineID: idhash.ComputeQuarantineID(rec.EventID, string(domain.StageResolution), ruleID),
		EventID:      rec.EventID,
		Source:       rec.Source,
		Stage:        domain.StageResolution,
		ReasonCode:   reason,
		RuleID:       ruleID,
		Field:        domain.FieldSymbol,
		RawValue:     rec.Exchange + ":" + rec.Symbol,
		Violations: []domain.Violation{{
			RuleID:   ruleID,
			Field:    domain.FieldSymbol,
			RawValue: rec.Exchange + ":" + rec.Symbol,
			Message:  err.Error(),
		}},
		Payload:       marshalPayload(raw),
		QuarantinedAt: o.now().UTC(),
	}
}

func (o *Orchestrator) adjustmentQuarantine(raw *domain.RawRecord, rec *domain.ResolvedRecord, reason string, err error) *domain.QuarantineRecord {
	ruleID := "adjustment." + strings.ToLower(reason)
	return &domain.QuarantineRecord{
		QuarantineID: idhash.ComputeQuarantineID(rec.EventID, string(domain.StageAdjustment), ruleID),
		EventID:      rec.EventID,
		Source:       rec.Source,
		Stage:        domain.StageAdjustment,
		ReasonCode:   reason,
		RuleID:       ruleID,
		RawValue:     rec.InstrumentID,
		Violations: []domain.Violation{{
			RuleID:   ruleID,
			RawValue: rec.InstrumentID,
			Message:  err.Error(),
		}},
		Payload:       marshalPayload(raw),
		QuarantinedAt: o.now().UTC(),
	}
}

func marshalPayload(raw *domain.RawRecord) []byte {
	if raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return b
}

func (o *Orchestrator) recordRun(result *RunResult, started time.Time, logger *slog.Logger) {
	finished := o.now().UTC()

	status := "success"
	switch {
	case result.Cancelled:
		status = "cancelled"
	case len(result.FailedInstruments) > 0 || len(result.Errors) > 0:
		status = "partial"
	}
	observability.RecordBatchRun(status, finished.Unix())

	if o.batchRunStore == nil {
		return
	}
	run := &storage.BatchRun{
		BatchID:               result.BatchID,
		StartedAt:             started,
		FinishedAt:            finished,
		RecordsIn:             result.RecordsIn,
		RecordsNormalized:     len(result.Records),
		RecordsQuarantined:    len(result.Quarantined),
		DuplicatesDropped:     result.Dedup.DuplicatesDropped,
		InstrumentsFailed:     len(result.FailedInstruments),
		OutputFingerprint:     result.Fingerprint,
		SymbolSnapshotVersion: o.snapshot.Version(),
		Cancelled:             result.Cancelled,
	}
	// Recorded for cancelled batches too.
	if err := o.batchRunStore.Insert(context.Background(), run); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("record batch run: %v", err))
		logger.Error("failed to record batch run", "error", err)
	}
}
