package verification

import (
	"testing"
	"time"

	"eod-normalizer/internal/domain"
)

func ptrFloat64(v float64) *float64 { return &v }

func normalized(instrumentID, date string, closePrice, factor float64) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		InstrumentID:     instrumentID,
		TradeDate:        domain.MustDate(date),
		Exchange:         "NSE",
		Symbol:           "ABC",
		Source:           "NSE_BHAV",
		EventID:          "e-" + instrumentID + "-" + date,
		Prices:           domain.Prices{Close: ptrFloat64(closePrice), High: ptrFloat64(closePrice + 10)},
		Volume:           ptrFloat64(1000),
		AdjustmentFactor: factor,
		IsTradingDay:     true,
	}
}

func TestCompareNormalizedRecords_ExactMatch(t *testing.T) {
	stored := normalized("INS1", "2024-01-12", 500, 0.2)
	replayed := normalized("INS1", "2024-01-12", 500, 0.2)

	if divergences := CompareNormalizedRecords(stored, replayed); len(divergences) != 0 {
		t.Errorf("Expected 0 divergences, got %d: %v", len(divergences), divergences)
	}
}

func TestCompareNormalizedRecords_WithinTolerance(t *testing.T) {
	stored := normalized("INS1", "2024-01-12", 500, 0.2)
	replayed := normalized("INS1", "2024-01-12", 500+FloatTolerance/2, 0.2)

	if divergences := CompareNormalizedRecords(stored, replayed); len(divergences) != 0 {
		t.Errorf("Expected 0 divergences within tolerance, got %v", divergences)
	}
}

func TestCompareNormalizedRecords_Divergences(t *testing.T) {
	stored := normalized("INS1", "2024-01-12", 500, 0.2)
	stored.AdjustmentDate = ptrDate("2024-01-15")

	replayed := normalized("INS1", "2024-01-12", 2500, 1)
	replayed.Volume = nil
	replayed.IsTradingDay = false

	divergences := CompareNormalizedRecords(stored, replayed)

	want := map[string]bool{
		"Close":            true,
		"High":             true,
		"Volume":           true,
		"AdjustmentFactor": true,
		"AdjustmentDate":   true,
		"IsTradingDay":     true,
	}
	if len(divergences) != len(want) {
		t.Fatalf("Expected %d divergences, got %d: %v", len(want), len(divergences), divergences)
	}
	for _, d := range divergences {
		if !want[d.Field] {
			t.Errorf("unexpected divergence on %s", d.Field)
		}
	}
}

func TestCompareSets(t *testing.T) {
	stored := []*domain.NormalizedRecord{
		normalized("INS1", "2024-01-12", 500, 0.2),
		normalized("INS1", "2024-01-15", 505, 1),
		normalized("INS2", "2024-01-12", 10, 1), // not replayed
	}
	replayed := []*domain.NormalizedRecord{
		normalized("INS1", "2024-01-15", 505, 1),
		normalized("INS1", "2024-01-12", 2500, 1), // split missing on replay
		normalized("INS3", "2024-01-12", 42, 1),   // not stored
	}

	report := CompareSets(stored, replayed)

	if report.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", report.TotalRecords)
	}
	if report.MatchedRecords != 1 {
		t.Errorf("MatchedRecords = %d, want 1", report.MatchedRecords)
	}
	if report.DivergentRecords != 3 {
		t.Errorf("DivergentRecords = %d, want 3", report.DivergentRecords)
	}
	if report.Match() {
		t.Error("Match() = true, want false")
	}
	if report.StoredFingerprint == report.ReplayedFingerprint {
		t.Error("fingerprints should differ")
	}

	// Ordered by (instrument_id, trade_date)
	if len(report.Results) != 3 {
		t.Fatalf("Results = %d, want 3", len(report.Results))
	}
	first, second, third := report.Results[0], report.Results[1], report.Results[2]
	if first.InstrumentID != "INS1" || first.TradeDate != "2024-01-12" || len(first.Divergences) == 0 {
		t.Errorf("first result = %+v", first)
	}
	if second.InstrumentID != "INS2" || !second.Extra {
		t.Errorf("second result = %+v, want extra INS2", second)
	}
	if third.InstrumentID != "INS3" || !third.Missing {
		t.Errorf("third result = %+v, want missing INS3", third)
	}
}

func TestCompareSets_IdenticalInAnyOrder(t *testing.T) {
	a := []*domain.NormalizedRecord{
		normalized("INS2", "2024-01-12", 10, 1),
		normalized("INS1", "2024-01-12", 500, 0.2),
	}
	b := []*domain.NormalizedRecord{
		normalized("INS1", "2024-01-12", 500, 0.2),
		normalized("INS2", "2024-01-12", 10, 1),
	}

	report := CompareSets(a, b)
	if !report.Match() {
		t.Errorf("Match() = false, results: %+v", report.Results)
	}
	if report.MatchedRecords != 2 {
		t.Errorf("MatchedRecords = %d, want 2", report.MatchedRecords)
	}
}

func TestVerificationReport_BatchFingerprint(t *testing.T) {
	report := &VerificationReport{StoredFingerprint: "x", ReplayedFingerprint: "x"}
	if !report.Match() {
		t.Error("Match() = false without batch fingerprint")
	}
	report.BatchFingerprint = "y"
	if report.Match() {
		t.Error("Match() = true with mismatched batch fingerprint")
	}
}

func ptrDate(s string) *time.Time {
	d := domain.MustDate(s)
	return &d
}
