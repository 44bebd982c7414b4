package corpaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eod-normalizer/internal/domain"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newParser(policy DividendPolicy) *Parser {
	return NewParser(Options{DividendPolicy: policy, Now: func() time.Time { return fixedNow }})
}

func notice(purpose string) domain.RawNotice {
	return domain.RawNotice{
		Exchange:     "NSE",
		Symbol:       "ABC",
		InstrumentID: "INS1",
		Purpose:      purpose,
		ExDate:       domain.MustDate("2024-01-15"),
	}
}

func f64(v float64) *float64 { return &v }

// Reference notices with exact expected classification and quantities.
func TestParse_ReferenceNotices(t *testing.T) {
	p := newParser(DividendPolicyNone)

	bonus := p.Parse(notice("Bonus 2:1"))
	assert.Equal(t, domain.ActionBonus, bonus.ActionType)
	assert.Equal(t, int64(2), bonus.RatioNumerator)
	assert.Equal(t, int64(1), bonus.RatioDenominator)
	assert.InDelta(t, 1.0/3.0, bonus.AdjustmentFactor, 1e-12)
	assert.Equal(t, domain.ConfidenceHigh, bonus.ParseConfidence)
	assert.False(t, bonus.NeedsReview)

	split := p.Parse(notice("Face Value Split (Sub-Division) - From Rs 10/- to Re 1/-"))
	assert.Equal(t, domain.ActionSplit, split.ActionType)
	assert.Equal(t, int64(1), split.RatioNumerator)
	assert.Equal(t, int64(10), split.RatioDenominator)
	assert.InDelta(t, 0.1, split.AdjustmentFactor, 1e-12)

	div := p.Parse(notice("Dividend - Rs 5.50 Per Share"))
	assert.Equal(t, domain.ActionDividend, div.ActionType)
	require.True(t, div.Amount.Valid)
	assert.True(t, div.Amount.Decimal.Equal(decimal.RequireFromString("5.50")))
	assert.Equal(t, 1.0, div.AdjustmentFactor)
	assert.False(t, div.NeedsReview)
}

func TestParse_RuleOrderFirstMatchWins(t *testing.T) {
	p := newParser(DividendPolicyNone)

	tests := []struct {
		purpose string
		want    domain.ActionType
	}{
		{"Bonus 1:1 and Dividend Rs 2", domain.ActionBonus},
		{"AGM/Dividend - Rs 8 Per Share", domain.ActionDividend},
		{"Rights 1:5 @ Premium Rs 40/-", domain.ActionRights},
		{"Interest Payment", domain.ActionInterestPayment},
		{"Annual General Meeting", domain.ActionMeeting},
		{"EGM", domain.ActionMeeting},
		{"Scheme of Arrangement", domain.ActionOther},
		{"Split 1:5", domain.ActionSplit},
	}

	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(notice(tt.purpose)).ActionType)
			assert.Equal(t, tt.want, p.Classify(tt.purpose))
		})
	}
}

func TestParse_SplitExplicitRatio(t *testing.T) {
	e := newParser(DividendPolicyNone).Parse(notice("Stock Split 1:5"))
	assert.Equal(t, domain.ActionSplit, e.ActionType)
	assert.InDelta(t, 0.2, e.AdjustmentFactor, 1e-12)
}

func TestParse_SplitFractionalFaceValue(t *testing.T) {
	e := newParser(DividendPolicyNone).Parse(notice("Sub-Division From Rs 10/- to Rs 2.50/-"))
	assert.Equal(t, domain.ActionSplit, e.ActionType)
	assert.Equal(t, int64(1), e.RatioNumerator)
	assert.Equal(t, int64(4), e.RatioDenominator)
	assert.InDelta(t, 0.25, e.AdjustmentFactor, 1e-12)
}

func TestParse_MalformedRatioDowngradesToOther(t *testing.T) {
	p := newParser(DividendPolicyNone)

	for _, purpose := range []string{"Bonus", "Bonus 1.5:1", "Bonus 0:1", "Split"} {
		t.Run(purpose, func(t *testing.T) {
			e := p.Parse(notice(purpose))
			assert.Equal(t, domain.ActionOther, e.ActionType)
			assert.Equal(t, 1.0, e.AdjustmentFactor)
			assert.Equal(t, domain.ConfidenceNone, e.ParseConfidence)
			assert.True(t, e.NeedsReview)
			assert.NotEmpty(t, e.ReviewReason)
			assert.Len(t, e.ActionID, 64, "event is still recorded")
		})
	}
}

func TestParse_DividendSumsAmounts(t *testing.T) {
	e := newParser(DividendPolicyNone).Parse(notice("Interim Dividend - Rs 2 Per Share + Special Dividend - Rs 3.25 Per Share"))
	require.True(t, e.Amount.Valid)
	assert.True(t, e.Amount.Decimal.Equal(decimal.RequireFromString("5.25")))
}

func TestParse_DividendIgnoresFaceValue(t *testing.T) {
	tests := []struct {
		purpose string
		want    string
	}{
		{"Dividend - Rs 5.50 Per Share (Face Value Rs 10/-)", "5.5"},
		{"Face Value Rs 2/- Dividend Rs 8 Per Share", "8"},
		{"Interim Dividend Rs 3 Per Share FV Re.1 each", "3"},
	}
	p := newParser(DividendPolicyNone)
	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			e := p.Parse(notice(tt.purpose))
			assert.Equal(t, domain.ActionDividend, e.ActionType)
			require.True(t, e.Amount.Valid)
			assert.True(t, e.Amount.Decimal.Equal(decimal.RequireFromString(tt.want)), "got %s", e.Amount.Decimal)
		})
	}
}

func TestParse_DividendPercentOfStatedFaceValue(t *testing.T) {
	e := newParser(DividendPolicyNone).Parse(notice("Dividend 40% (Face Value Rs 5/-)"))
	require.True(t, e.Amount.Valid)
	assert.True(t, e.Amount.Decimal.Equal(decimal.NewFromInt(2)))
}

func TestParse_DividendPercentOfFaceValue(t *testing.T) {
	n := notice("Dividend 55%")
	n.FaceValue = decimal.NewNullDecimal(decimal.NewFromInt(10))

	e := newParser(DividendPolicyNone).Parse(n)
	require.True(t, e.Amount.Valid)
	assert.True(t, e.Amount.Decimal.Equal(decimal.RequireFromString("5.5")))
}

func TestParse_DividendDropPolicy(t *testing.T) {
	p := newParser(DividendPolicyDrop)

	n := notice("Dividend - Rs 5 Per Share")
	n.ReferenceClose = f64(100)
	e := p.Parse(n)
	assert.InDelta(t, 0.95, e.AdjustmentFactor, 1e-12)
	assert.False(t, e.NeedsReview)

	// Without a reference close the event has no price effect and is flagged
	e = p.Parse(notice("Dividend - Rs 5 Per Share"))
	assert.Equal(t, 1.0, e.AdjustmentFactor)
	assert.True(t, e.NeedsReview)

	// Amount at or above the close cannot produce a positive factor
	n = notice("Dividend - Rs 150 Per Share")
	n.ReferenceClose = f64(100)
	e = p.Parse(n)
	assert.Equal(t, 1.0, e.AdjustmentFactor)
	assert.True(t, e.NeedsReview)
}

func TestParse_Rights(t *testing.T) {
	p := newParser(DividendPolicyNone)

	n := notice("Rights 1:4 @ Rs 50")
	n.ReferenceClose = f64(100)
	e := p.Parse(n)

	// TERP = (4*100 + 1*50) / 5 = 90, factor = 0.9
	assert.Equal(t, domain.ActionRights, e.ActionType)
	assert.Equal(t, int64(1), e.RatioNumerator)
	assert.Equal(t, int64(4), e.RatioDenominator)
	require.True(t, e.SubscriptionPrice.Valid)
	assert.True(t, e.SubscriptionPrice.Decimal.Equal(decimal.NewFromInt(50)))
	assert.InDelta(t, 0.9, e.AdjustmentFactor, 1e-12)
	assert.False(t, e.NeedsReview)
}

func TestParse_RightsPremiumAddsFaceValue(t *testing.T) {
	n := notice("Rights 1:5 @ Premium Rs 40/-")
	n.FaceValue = decimal.NewNullDecimal(decimal.NewFromInt(10))
	n.ReferenceClose = f64(110)

	e := newParser(DividendPolicyNone).Parse(n)
	require.True(t, e.SubscriptionPrice.Valid)
	assert.True(t, e.SubscriptionPrice.Decimal.Equal(decimal.NewFromInt(50)))
	// TERP = (5*110 + 50) / 6 = 100
	assert.InDelta(t, 100.0/110.0, e.AdjustmentFactor, 1e-12)
}

func TestParse_RightsWithoutCloseIsFlagged(t *testing.T) {
	e := newParser(DividendPolicyNone).Parse(notice("Rights 1:4 @ Rs 50"))
	assert.Equal(t, domain.ActionRights, e.ActionType)
	assert.Equal(t, 1.0, e.AdjustmentFactor)
	assert.True(t, e.NeedsReview)
	assert.Equal(t, domain.ConfidenceLow, e.ParseConfidence)
}

func TestParse_PurposeHintFallback(t *testing.T) {
	p := newParser(DividendPolicyNone)

	n := notice("Corporate announcement")
	n.PurposeHint = "AGM"
	e := p.Parse(n)
	assert.Equal(t, domain.ActionMeeting, e.ActionType)
	assert.Equal(t, domain.ConfidenceLow, e.ParseConfidence)

	n = notice("Corporate announcement")
	n.PurposeHint = "BONUS"
	e = p.Parse(n)
	assert.Equal(t, domain.ActionOther, e.ActionType, "bonus hint without a ratio cannot be quantified")
	assert.True(t, e.NeedsReview)

	n = notice("Corporate announcement")
	n.PurposeHint = "MYSTERY"
	e = p.Parse(n)
	assert.Equal(t, domain.ActionOther, e.ActionType)
	assert.True(t, e.NeedsReview)
}

func TestParse_FactorAlwaysPositive(t *testing.T) {
	p := newParser(DividendPolicyDrop)
	purposes := []string{
		"Bonus 2:1", "Split 1:5", "Split 5:1", "Rights 1:1 @ Rs 500", "Dividend Rs 1000",
		"Bonus", "AGM", "Interest", "anything",
	}
	for _, purpose := range purposes {
		n := notice(purpose)
		n.ReferenceClose = f64(100)
		e := p.Parse(n)
		assert.Greater(t, e.AdjustmentFactor, 0.0, purpose)
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := newParser(DividendPolicyNone)
	n := notice("Bonus 2:1")
	assert.Equal(t, p.Parse(n), p.Parse(n))
}

func TestParseDividendPolicy(t *testing.T) {
	got, err := ParseDividendPolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, DividendPolicyDrop, got)

	got, err = ParseDividendPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DividendPolicyNone, got)

	_, err = ParseDividendPolicy("total-return")
	assert.Error(t, err)
}
