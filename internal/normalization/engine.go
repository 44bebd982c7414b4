// Package normalization applies cumulative adjustment factors to deduplicated
// daily records and produces the normalized output series.
package normalization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eod-normalizer/internal/domain"
)

var (
	// ErrInvalidFactor is returned when a factor is not strictly positive.
	ErrInvalidFactor = errors.New("adjustment factor must be positive")
	// ErrDuplicateTradeDate is returned when an instrument's input carries two
	// records for one trade date. Callers collapse them by source priority first.
	ErrDuplicateTradeDate = errors.New("duplicate trade date for instrument")
)

// NormalizationEngine normalizes one instrument partition. The orchestrator
// runs one call per instrument on its worker pool.
type NormalizationEngine interface {
	// NormalizeInstrument adjusts and persists one instrument's records.
	NormalizeInstrument(ctx context.Context, instrumentID string, records []*domain.ResolvedRecord) (*InstrumentResult, error)
}

// Apply scales every price-class field of rec by factor. Volume and turnover
// are copied unchanged.
func Apply(rec *domain.ResolvedRecord, factor float64, adjustmentDate *time.Time, isTradingDay bool) (*domain.NormalizedRecord, error) {
	if !(factor > 0) {
		return nil, fmt.Errorf("%w: %s %s: %g", ErrInvalidFactor, rec.InstrumentID, domain.FormatDate(rec.TradeDate), factor)
	}

	out := &domain.NormalizedRecord{
		InstrumentID:     rec.InstrumentID,
		TradeDate:        domain.DateOf(rec.TradeDate),
		Exchange:         rec.Exchange,
		Symbol:           rec.Symbol,
		SecurityID:       copyString(rec.SecurityID),
		Source:           rec.Source,
		EventID:          rec.EventID,
		Prices:           rec.Prices.Scale(factor),
		Volume:           copyFloat(rec.Volume),
		Turnover:         copyFloat(rec.Turnover),
		AdjustmentFactor: factor,
		IsTradingDay:     isTradingDay,
	}
	if adjustmentDate != nil {
		d := *adjustmentDate
		out.AdjustmentDate = &d
	}

	p := out.Prices
	if p.High != nil && p.Low != nil && *p.High < *p.Low {
		return nil, fmt.Errorf("%s %s: high %g < low %g after adjustment",
			rec.InstrumentID, domain.FormatDate(rec.TradeDate), *p.High, *p.Low)
	}
	return out, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
