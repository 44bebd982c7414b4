package corpaction

import (
	"fmt"
	"strings"

	"eod-normalizer/internal/domain"
)

// DividendPolicy selects how cash dividends affect historical prices.
type DividendPolicy string

const (
	// DividendPolicyNone leaves prices unadjusted for dividends (factor 1.0).
	DividendPolicyNone DividendPolicy = "none"
	// DividendPolicyDrop scales prices by 1 - amount/pre_ex_close.
	DividendPolicyDrop DividendPolicy = "drop"
)

// ParseDividendPolicy parses a configured policy name.
func ParseDividendPolicy(s string) (DividendPolicy, error) {
	switch p := DividendPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DividendPolicyNone, DividendPolicyDrop:
		return p, nil
	case "":
		return DividendPolicyNone, nil
	default:
		return "", fmt.Errorf("unknown dividend policy %q (want none|drop)", s)
	}
}

// factorResult is an event factor plus the reason it could not be fully computed, if any.
type factorResult struct {
	factor float64
	review string
}

// computeFactor returns the multiplier for prices before the ex-date.
// It never returns a non-positive factor; anything it cannot compute is 1.0
// with a review reason.
func computeFactor(t domain.ActionType, q Quantities, notice domain.RawNotice, policy DividendPolicy) factorResult {
	switch t {
	case domain.ActionSplit:
		// old:new, 1 old share becomes new shares.
		return factorResult{factor: float64(q.Numerator) / float64(q.Denominator)}

	case domain.ActionBonus:
		// new:existing
		return factorResult{factor: float64(q.Denominator) / float64(q.Denominator+q.Numerator)}

	case domain.ActionRights:
		return rightsFactor(q, notice)

	case domain.ActionDividend:
		return dividendFactor(q, notice, policy)
	}
	return factorResult{factor: 1.0}
}

// rightsFactor uses the theoretical ex-rights price:
// TERP = (existing*P + new*S) / (existing + new), factor = TERP / P,
// where P is the pre-ex close and S the subscription price.
func rightsFactor(q Quantities, notice domain.RawNotice) factorResult {
	if !q.Price.Valid {
		return factorResult{factor: 1.0, review: q.Partial}
	}
	if notice.ReferenceClose == nil || *notice.ReferenceClose <= 0 {
		return factorResult{factor: 1.0, review: "pre-ex close unavailable for rights factor"}
	}

	p := *notice.ReferenceClose
	s, _ := q.Price.Decimal.Float64()
	existing, newShares := float64(q.Denominator), float64(q.Numerator)

	terp := (existing*p + newShares*s) / (existing + newShares)
	f := terp / p
	if f >= 1 || f <= 0 {
		return factorResult{factor: 1.0, review: fmt.Sprintf("subscription price %g not below pre-ex close %g", s, p)}
	}
	return factorResult{factor: f}
}

func dividendFactor(q Quantities, notice domain.RawNotice, policy DividendPolicy) factorResult {
	if policy != DividendPolicyDrop {
		return factorResult{factor: 1.0}
	}
	if !q.Amount.Valid {
		return factorResult{factor: 1.0, review: q.Partial}
	}
	if notice.ReferenceClose == nil || *notice.ReferenceClose <= 0 {
		return factorResult{factor: 1.0, review: "pre-ex close unavailable for dividend drop factor"}
	}

	amount, _ := q.Amount.Decimal.Float64()
	pre := *notice.ReferenceClose
	f := 1 - amount/pre
	if f <= 0 || f >= 1 {
		return factorResult{factor: 1.0, review: fmt.Sprintf("dividend %g out of range for pre-ex close %g", amount, pre)}
	}
	return factorResult{factor: f}
}
