// Package verification proves that a stored normalized series is reproducible:
// the raw records behind it are replayed through the same pipeline and the
// result is compared with what is stored, field by field and by fingerprint.
package verification

import (
	"math"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/idhash"
	"eod-normalizer/internal/normalization"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// RecordResult is the comparison of one (instrument_id, trade_date) key.
type RecordResult struct {
	InstrumentID string
	TradeDate    string
	Match        bool
	Missing      bool // replayed but not stored
	Extra        bool // stored but not replayed
	Divergences  []FieldDivergence
}

// VerificationReport contains results for a verified record set.
type VerificationReport struct {
	TotalRecords        int
	MatchedRecords      int
	DivergentRecords    int
	StoredFingerprint   string
	ReplayedFingerprint string
	BatchFingerprint    string // fingerprint recorded with the batch run, if checked
	FailedInstruments   []string
	Results             []RecordResult // only keys that did not match, ordered by key
}

// Match reports whether the replay reproduced the stored output exactly.
func (r *VerificationReport) Match() bool {
	if r.DivergentRecords > 0 || len(r.FailedInstruments) > 0 {
		return false
	}
	if r.StoredFingerprint != r.ReplayedFingerprint {
		return false
	}
	return r.BatchFingerprint == "" || r.BatchFingerprint == r.ReplayedFingerprint
}

// CompareNormalizedRecords compares two records with the same key and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareNormalizedRecords(stored, replayed *domain.NormalizedRecord) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.InstrumentID != replayed.InstrumentID {
		add("InstrumentID", stored.InstrumentID, replayed.InstrumentID)
	}
	if !stored.TradeDate.Equal(replayed.TradeDate) {
		add("TradeDate", domain.FormatDate(stored.TradeDate), domain.FormatDate(replayed.TradeDate))
	}
	if stored.Exchange != replayed.Exchange {
		add("Exchange", stored.Exchange, replayed.Exchange)
	}
	if stored.Symbol != replayed.Symbol {
		add("Symbol", stored.Symbol, replayed.Symbol)
	}
	if !stringPtrEquals(stored.SecurityID, replayed.SecurityID) {
		add("SecurityID", stored.SecurityID, replayed.SecurityID)
	}
	if stored.Source != replayed.Source {
		add("Source", stored.Source, replayed.Source)
	}
	if stored.EventID != replayed.EventID {
		add("EventID", stored.EventID, replayed.EventID)
	}

	prices := []struct {
		field string
		a, b  *float64
	}{
		{"Open", stored.Prices.Open, replayed.Prices.Open},
		{"High", stored.Prices.High, replayed.Prices.High},
		{"Low", stored.Prices.Low, replayed.Prices.Low},
		{"Close", stored.Prices.Close, replayed.Prices.Close},
		{"PrevClose", stored.Prices.PrevClose, replayed.Prices.PrevClose},
		{"Last", stored.Prices.Last, replayed.Prices.Last},
		{"Settlement", stored.Prices.Settlement, replayed.Prices.Settlement},
		{"Volume", stored.Volume, replayed.Volume},
		{"Turnover", stored.Turnover, replayed.Turnover},
	}
	for _, p := range prices {
		if !floatPtrEquals(p.a, p.b) {
			add(p.field, p.a, p.b)
		}
	}

	if !floatEquals(stored.AdjustmentFactor, replayed.AdjustmentFactor) {
		add("AdjustmentFactor", stored.AdjustmentFactor, replayed.AdjustmentFactor)
	}
	if !datePtrEquals(stored.AdjustmentDate, replayed.AdjustmentDate) {
		add("AdjustmentDate", stored.AdjustmentDate, replayed.AdjustmentDate)
	}
	if stored.IsTradingDay != replayed.IsTradingDay {
		add("IsTradingDay", stored.IsTradingDay, replayed.IsTradingDay)
	}

	return divergences
}

// CompareSets matches stored and replayed records by (instrument_id, trade_date)
// and compares each pair. Both fingerprints are computed over the full sets.
func CompareSets(stored, replayed []*domain.NormalizedRecord) *VerificationReport {
	report := &VerificationReport{
		StoredFingerprint:   idhash.Fingerprint(stored),
		ReplayedFingerprint: idhash.Fingerprint(replayed),
	}

	type key struct {
		instrumentID string
		tradeDate    string
	}
	keyOf := func(r *domain.NormalizedRecord) key {
		return key{r.InstrumentID, domain.FormatDate(r.TradeDate)}
	}

	storedByKey := make(map[key]*domain.NormalizedRecord, len(stored))
	for _, r := range stored {
		storedByKey[keyOf(r)] = r
	}

	// Walk the union in canonical order so results are deterministic.
	all := make([]*domain.NormalizedRecord, 0, len(stored)+len(replayed))
	all = append(all, replayed...)
	replayedKeys := make(map[key]struct{}, len(replayed))
	for _, r := range replayed {
		replayedKeys[keyOf(r)] = struct{}{}
	}
	for _, r := range stored {
		if _, ok := replayedKeys[keyOf(r)]; !ok {
			all = append(all, r)
		}
	}
	normalization.SortNormalized(all)

	for _, r := range all {
		k := keyOf(r)
		report.TotalRecords++
		res := RecordResult{InstrumentID: k.instrumentID, TradeDate: k.tradeDate}

		s, inStored := storedByKey[k]
		_, inReplayed := replayedKeys[k]
		switch {
		case !inStored:
			res.Missing = true
		case !inReplayed:
			res.Extra = true
		default:
			res.Divergences = CompareNormalizedRecords(s, r)
		}

		if !res.Missing && !res.Extra && len(res.Divergences) == 0 {
			report.MatchedRecords++
			continue
		}
		report.DivergentRecords++
		report.Results = append(report.Results, res)
	}

	return report
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}

func stringPtrEquals(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func datePtrEquals(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
