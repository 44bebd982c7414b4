package validation

import (
	"errors"
	"fmt"
	"math"

	"eod-normalizer/internal/domain"
)

// ErrContractViolation is returned when a normalized record breaks the output contract.
var ErrContractViolation = errors.New("normalized record contract violation")

// CheckNormalized enforces the output contract: close present, finite
// values, high >= low and a positive finite adjustment factor.
func CheckNormalized(r *domain.NormalizedRecord) error {
	if r.InstrumentID == "" {
		return fmt.Errorf("%w: missing instrument_id", ErrContractViolation)
	}
	if r.TradeDate.IsZero() {
		return fmt.Errorf("%w: %s: missing trade_date", ErrContractViolation, r.InstrumentID)
	}
	if !(r.AdjustmentFactor > 0) || math.IsInf(r.AdjustmentFactor, 0) {
		return fmt.Errorf("%w: %s %s: adjustment_factor %g <= 0",
			ErrContractViolation, r.InstrumentID, domain.FormatDate(r.TradeDate), r.AdjustmentFactor)
	}
	if r.Prices.Close == nil {
		return fmt.Errorf("%w: %s %s: missing close", ErrContractViolation, r.InstrumentID, domain.FormatDate(r.TradeDate))
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"open", r.Prices.Open},
		{"high", r.Prices.High},
		{"low", r.Prices.Low},
		{"close", r.Prices.Close},
		{"prev_close", r.Prices.PrevClose},
		{"last", r.Prices.Last},
		{"settlement", r.Prices.Settlement},
		{"volume", r.Volume},
		{"turnover", r.Turnover},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return fmt.Errorf("%w: %s %s: %s is not finite",
				ErrContractViolation, r.InstrumentID, domain.FormatDate(r.TradeDate), f.name)
		}
	}
	if r.Prices.High != nil && r.Prices.Low != nil && *r.Prices.High < *r.Prices.Low {
		return fmt.Errorf("%w: %s %s: high %g < low %g",
			ErrContractViolation, r.InstrumentID, domain.FormatDate(r.TradeDate), *r.Prices.High, *r.Prices.Low)
	}
	return nil
}
