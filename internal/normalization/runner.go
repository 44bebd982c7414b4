package normalization

import (
	"context"
	"fmt"

	"eod-normalizer/internal/adjustment"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
	"eod-normalizer/internal/validation"
)

// TimelineSource provides the frozen adjustment timeline of an instrument.
type TimelineSource interface {
	Timeline(instrumentID string) (*adjustment.Timeline, error)
}

// Runner implements NormalizationEngine.
type Runner struct {
	timelines TimelineSource
	calendar  *domain.TradingCalendar
	store     storage.NormalizedRecordStore
}

// NewRunner creates a new normalization runner. calendar may be nil, in which
// case weekdays are trading days. store may be nil to compute without persisting.
func NewRunner(timelines TimelineSource, calendar *domain.TradingCalendar, store storage.NormalizedRecordStore) *Runner {
	return &Runner{
		timelines: timelines,
		calendar:  calendar,
		store:     store,
	}
}

// InstrumentResult is the outcome of normalizing one instrument.
type InstrumentResult struct {
	InstrumentID string
	Records      []*domain.NormalizedRecord // ordered by trade_date
	Adjusted     int                        // records with factor != 1
}

// NormalizeInstrument processes a single instrument's deduplicated records,
// at most one per trade date.
// Steps:
//  1. Look up the frozen timeline
//  2. Sort by (trade_date, source, event_id)
//  3. Apply the cumulative factor per record and check the output contract
//  4. Upsert into the normalized store
//
// Any error is fatal for the instrument; nothing is written in that case.
func (r *Runner) NormalizeInstrument(ctx context.Context, instrumentID string, records []*domain.ResolvedRecord) (*InstrumentResult, error) {
	// 1. Timeline
	tl, err := r.timelines.Timeline(instrumentID)
	if err != nil {
		return nil, err
	}

	// 2. Canonical order
	sorted := make([]*domain.ResolvedRecord, len(records))
	copy(sorted, records)
	SortByTradeDate(sorted)

	// 3. Apply
	result := &InstrumentResult{InstrumentID: instrumentID}
	for i, rec := range sorted {
		if rec.InstrumentID != instrumentID {
			return nil, fmt.Errorf("record %s belongs to %s, not %s", rec.EventID, rec.InstrumentID, instrumentID)
		}
		if i > 0 && sorted[i-1].TradeDate.Equal(rec.TradeDate) {
			return nil, fmt.Errorf("%w: %s %s: events %s and %s",
				ErrDuplicateTradeDate, instrumentID, domain.FormatDate(rec.TradeDate), sorted[i-1].EventID, rec.EventID)
		}

		factor, adjDate := tl.FactorAt(rec.TradeDate)
		out, err := Apply(rec, factor, adjDate, r.calendar.IsTradingDay(rec.Exchange, rec.TradeDate))
		if err != nil {
			return nil, err
		}
		if err := validation.CheckNormalized(out); err != nil {
			return nil, err
		}
		if factor != 1.0 {
			result.Adjusted++
		}
		result.Records = append(result.Records, out)
	}

	// 4. Persist
	if r.store != nil && len(result.Records) > 0 {
		if err := r.store.Upsert(ctx, result.Records); err != nil {
			return nil, fmt.Errorf("upsert normalized records for %s: %w", instrumentID, err)
		}
	}

	return result, nil
}
