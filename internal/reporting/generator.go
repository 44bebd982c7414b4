package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/orchestrator"
	"eod-normalizer/internal/storage"
)

// Generator builds batch reports.
type Generator struct {
	quarantineStore storage.QuarantineStore
	actionStore     storage.CorporateActionStore
	batchRunStore   storage.BatchRunStore
	now             func() time.Time
}

// GeneratorOptions contains configuration for creating a Generator.
// Every store is optional; sections without a store are left empty.
type GeneratorOptions struct {
	QuarantineStore storage.QuarantineStore
	ActionStore     storage.CorporateActionStore
	BatchRunStore   storage.BatchRunStore
	Now             func() time.Time
}

// NewGenerator creates a new Generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	g := &Generator{
		quarantineStore: opts.QuarantineStore,
		actionStore:     opts.ActionStore,
		batchRunStore:   opts.BatchRunStore,
		now:             opts.Now,
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// FromRun builds a report from a finished orchestrator run.
func (g *Generator) FromRun(ctx context.Context, result *orchestrator.RunResult, snapshotVersion string) (*Report, error) {
	r := &Report{
		GeneratedAt: g.now().UTC(),
		BatchID:     result.BatchID,
		Summary: BatchSummary{
			SymbolSnapshotVersion: snapshotVersion,
			RecordsIn:             result.RecordsIn,
			Validated:             result.Validated,
			Resolved:              result.Resolved,
			DuplicatesDropped:     result.Dedup.DuplicatesDropped,
			Instruments:           result.Instruments,
			RecordsNormalized:     len(result.Records),
			RecordsAdjusted:       result.Adjusted,
			RecordsQuarantined:    len(result.Quarantined),
			OutputFingerprint:     result.Fingerprint,
			Cancelled:             result.Cancelled,
		},
		QuarantineByReason: groupQuarantine(result.Quarantined),
		Errors:             append([]string(nil), result.Errors...),
	}

	for _, f := range result.FailedInstruments {
		row := FailedInstrumentRow{InstrumentID: f.InstrumentID, ReasonCode: f.ReasonCode, Records: f.Records}
		if f.Err != nil {
			row.Error = f.Err.Error()
		}
		r.FailedInstruments = append(r.FailedInstruments, row)
	}

	if g.batchRunStore != nil {
		run, err := g.batchRunStore.GetByID(ctx, result.BatchID)
		switch {
		case err == nil:
			r.Summary.StartedAt = run.StartedAt
			r.Summary.FinishedAt = run.FinishedAt
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load batch run: %w", err)
		}
	}

	if err := g.addReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// FromBatchRun rebuilds a report for a recorded batch from the stores.
// Quarantine records are those stamped within the run's [started, finished] window.
func (g *Generator) FromBatchRun(ctx context.Context, batchID string) (*Report, error) {
	if g.batchRunStore == nil {
		return nil, errors.New("reporting: no batch run store configured")
	}

	var run *storage.BatchRun
	var err error
	if batchID == "" {
		run, err = g.batchRunStore.GetLatest(ctx)
	} else {
		run, err = g.batchRunStore.GetByID(ctx, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("load batch run: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now().UTC(),
		BatchID:     run.BatchID,
		Summary: BatchSummary{
			StartedAt:             run.StartedAt,
			FinishedAt:            run.FinishedAt,
			SymbolSnapshotVersion: run.SymbolSnapshotVersion,
			RecordsIn:             run.RecordsIn,
			DuplicatesDropped:     run.DuplicatesDropped,
			RecordsNormalized:     run.RecordsNormalized,
			RecordsQuarantined:    run.RecordsQuarantined,
			OutputFingerprint:     run.OutputFingerprint,
			Cancelled:             run.Cancelled,
		},
	}

	if g.quarantineStore != nil {
		quarantined, err := g.quarantineStore.GetByTimeRange(ctx, run.StartedAt, run.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("load quarantine records: %w", err)
		}
		r.QuarantineByReason = groupQuarantine(quarantined)
	}

	if err := g.addReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (g *Generator) addReview(ctx context.Context, r *Report) error {
	if g.actionStore == nil {
		return nil
	}
	events, err := g.actionStore.GetNeedsReview(ctx)
	if err != nil {
		return fmt.Errorf("load corporate actions needing review: %w", err)
	}
	for _, e := range events {
		r.NeedsReview = append(r.NeedsReview, ReviewRow{
			ActionID:     e.ActionID,
			InstrumentID: e.InstrumentID,
			ActionType:   string(e.ActionType),
			ExDate:       domain.FormatDate(e.ExDate),
			Purpose:      e.Purpose,
			Reason:       e.ReviewReason,
		})
	}
	return nil
}

// groupQuarantine counts records by (stage, reason_code).
func groupQuarantine(records []*domain.QuarantineRecord) []QuarantineReasonRow {
	type key struct{ stage, reason string }
	counts := make(map[key]int)
	rules := make(map[key]map[string]int)

	for _, q := range records {
		k := key{string(q.Stage), q.ReasonCode}
		counts[k]++
		if rules[k] == nil {
			rules[k] = make(map[string]int)
		}
		rules[k][q.RuleID]++
	}

	rows := make([]QuarantineReasonRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, QuarantineReasonRow{
			Stage:      k.stage,
			ReasonCode: k.reason,
			Count:      n,
			TopRuleID:  topRule(rules[k]),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Stage != rows[j].Stage {
			return rows[i].Stage < rows[j].Stage
		}
		return rows[i].ReasonCode < rows[j].ReasonCode
	})
	return rows
}

// topRule returns the most frequent rule id, lowest id on ties.
func topRule(counts map[string]int) string {
	best, bestN := "", -1
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}
	return best
}
