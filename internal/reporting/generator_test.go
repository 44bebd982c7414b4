package reporting

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"eod-normalizer/internal/adjustment"
	"eod-normalizer/internal/dedup"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/orchestrator"
	"eod-normalizer/internal/storage/memory"
	"eod-normalizer/internal/symbols"
	"eod-normalizer/internal/validation"
)

var fixedNow = time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)

func str(v string) *string { return &v }

func rawRecord(eventID, symbol, date, high, low, closePrice string) *domain.RawRecord {
	return &domain.RawRecord{
		Envelope: domain.Envelope{EventID: eventID, Source: "NSE_BHAV", SchemaVersion: "1", IngestTime: fixedNow},
		Payload: domain.RawPayload{
			Exchange:  str("NSE"),
			Symbol:    str(symbol),
			TradeDate: str(date),
			High:      str(high),
			Low:       str(low),
			Close:     str(closePrice),
		},
	}
}

type testStores struct {
	quarantine *memory.QuarantineStore
	actions    *memory.CorporateActionStore
	runs       *memory.BatchRunStore
}

func runBatch(t *testing.T) (*orchestrator.RunResult, *testStores) {
	t.Helper()
	ctx := context.Background()

	stores := &testStores{
		quarantine: memory.NewQuarantineStore(),
		actions:    memory.NewCorporateActionStore(),
		runs:       memory.NewBatchRunStore(),
	}

	events := []*domain.CorporateActionEvent{
		{
			ActionID: "split-abc", InstrumentID: "INS1", ActionType: domain.ActionSplit,
			ExDate: domain.MustDate("2024-01-15"), RatioNumerator: 1, RatioDenominator: 5, AdjustmentFactor: 0.2, ParseConfidence: domain.ConfidenceHigh,
		},
		{
			ActionID: "other-abc", InstrumentID: "INS1", ActionType: domain.ActionOther,
			ExDate: domain.MustDate("2024-01-20"), Purpose: "Scheme | Of Arrangement", AdjustmentFactor: 1,
			ParseConfidence: domain.ConfidenceNone, NeedsReview: true, ReviewReason: "unrecognized purpose",
		},
	}
	for _, e := range events {
		if err := stores.actions.Insert(ctx, e); err != nil {
			t.Fatalf("Insert action failed: %v", err)
		}
	}
	engine := adjustment.NewEngine(stores.actions)
	if err := engine.Load(ctx); err != nil {
		t.Fatalf("Load engine failed: %v", err)
	}

	validator, err := validation.NewValidator(validation.DefaultRuleSet(), func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	snap := symbols.NewSnapshot("v7", []*domain.SymbolMasterEntry{
		{InstrumentID: "INS1", Exchange: "NSE", Symbol: "ABC", Status: domain.SymbolStatusActive, ValidFrom: domain.MustDate("2020-01-01")},
	})

	orch := orchestrator.New(orchestrator.Options{
		Validator:       validator,
		Snapshot:        snap,
		Timelines:       engine,
		Deduplicator:    dedup.New(nil),
		NormalizedStore: memory.NewNormalizedRecordStore(),
		QuarantineStore: stores.quarantine,
		BatchRunStore:   stores.runs,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:             func() time.Time { return fixedNow },
	})

	result, err := orch.Run(ctx, []*domain.RawRecord{
		rawRecord("e1", "ABC", "2024-01-12", "2520", "2440", "2500"),
		rawRecord("e2", "ABC", "2024-01-15", "510", "495", "505"),
		rawRecord("e3", "NOPE", "2024-01-12", "11", "9", "10"),
		rawRecord("e4", "ABC", "2024-01-16", "9", "11", "10"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result, stores
}

func TestGenerator_FromRun(t *testing.T) {
	result, stores := runBatch(t)

	g := NewGenerator(GeneratorOptions{
		ActionStore:   stores.actions,
		BatchRunStore: stores.runs,
		Now:           func() time.Time { return fixedNow },
	})
	report, err := g.FromRun(context.Background(), result, "v7")
	if err != nil {
		t.Fatalf("FromRun failed: %v", err)
	}

	if report.Summary.RecordsIn != 4 {
		t.Errorf("RecordsIn = %d, want 4", report.Summary.RecordsIn)
	}
	if report.Summary.RecordsNormalized != 2 {
		t.Errorf("RecordsNormalized = %d, want 2", report.Summary.RecordsNormalized)
	}
	if report.Summary.RecordsAdjusted != 1 {
		t.Errorf("RecordsAdjusted = %d, want 1", report.Summary.RecordsAdjusted)
	}
	if !report.Summary.StartedAt.Equal(fixedNow) {
		t.Errorf("StartedAt = %v, want %v", report.Summary.StartedAt, fixedNow)
	}

	if len(report.QuarantineByReason) != 2 {
		t.Fatalf("QuarantineByReason = %d rows, want 2", len(report.QuarantineByReason))
	}
	// RESOLUTION sorts before VALIDATION
	if report.QuarantineByReason[0].ReasonCode != domain.ReasonUnknownSymbol {
		t.Errorf("first reason = %s, want %s", report.QuarantineByReason[0].ReasonCode, domain.ReasonUnknownSymbol)
	}
	if report.QuarantineByReason[1].ReasonCode != domain.ReasonValidationFailed {
		t.Errorf("second reason = %s, want %s", report.QuarantineByReason[1].ReasonCode, domain.ReasonValidationFailed)
	}

	if len(report.NeedsReview) != 1 || report.NeedsReview[0].Reason != "unrecognized purpose" {
		t.Errorf("NeedsReview = %+v", report.NeedsReview)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Normalization Batch Report",
		"| Records In | 4 |",
		"| Symbol Snapshot | v7 |",
		"| RESOLUTION | UNKNOWN_SYMBOL | 1 | resolution.unknown_symbol |",
		"No instruments failed.",
		`Scheme \| Of Arrangement`,
		result.Fingerprint,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestGenerator_FromBatchRun(t *testing.T) {
	result, stores := runBatch(t)

	g := NewGenerator(GeneratorOptions{
		QuarantineStore: stores.quarantine,
		BatchRunStore:   stores.runs,
		Now:             func() time.Time { return fixedNow },
	})

	report, err := g.FromBatchRun(context.Background(), "")
	if err != nil {
		t.Fatalf("FromBatchRun failed: %v", err)
	}
	if report.BatchID != result.BatchID {
		t.Errorf("BatchID = %s, want %s", report.BatchID, result.BatchID)
	}
	if report.Summary.OutputFingerprint != result.Fingerprint {
		t.Errorf("OutputFingerprint = %s, want %s", report.Summary.OutputFingerprint, result.Fingerprint)
	}
	total := 0
	for _, row := range report.QuarantineByReason {
		total += row.Count
	}
	if total != 2 {
		t.Errorf("quarantined total = %d, want 2", total)
	}
	if len(report.NeedsReview) != 0 {
		t.Errorf("NeedsReview = %d rows without an action store", len(report.NeedsReview))
	}
}

func TestGenerator_FromBatchRunWithoutStore(t *testing.T) {
	if _, err := NewGenerator(GeneratorOptions{}).FromBatchRun(context.Background(), ""); err == nil {
		t.Fatal("expected error without batch run store")
	}
}

func TestRenderMarkdown_Cancelled(t *testing.T) {
	md := RenderMarkdown(&Report{BatchID: "b1", Summary: BatchSummary{Cancelled: true}, Errors: []string{"quarantine e1: boom"}})

	if !strings.Contains(md, "**Batch was cancelled.**") {
		t.Error("missing cancellation notice")
	}
	if !strings.Contains(md, "No records quarantined.") {
		t.Error("missing empty quarantine section")
	}
	if !strings.Contains(md, "- quarantine e1: boom") {
		t.Error("missing errors section")
	}
}

func TestRenderQuarantineCSV(t *testing.T) {
	records := []*domain.QuarantineRecord{
		{
			QuarantineID: "q1",
			EventID:      "e4",
			Source:       "NSE_BHAV",
			Stage:        domain.StageValidation,
			ReasonCode:   domain.ReasonValidationFailed,
			RuleID:       "high_gte_low",
			Field:        domain.FieldHigh,
			RawValue:     "9,5",
			Violations: []domain.Violation{
				{RuleID: "high_gte_low", Field: domain.FieldHigh},
				{RuleID: "close.min", Field: domain.FieldClose},
			},
			QuarantinedAt: fixedNow,
		},
	}

	out, err := RenderQuarantineCSV(records)
	if err != nil {
		t.Fatalf("RenderQuarantineCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "quarantine_id,event_id,source,stage,reason_code") {
		t.Errorf("header = %s", lines[0])
	}
	want := `q1,e4,NSE_BHAV,VALIDATION,VALIDATION_FAILED,high_gte_low,high,"9,5",high_gte_low:high;close.min:close,2024-02-01T18:00:00Z`
	if lines[1] != want {
		t.Errorf("row =\n%s\nwant\n%s", lines[1], want)
	}
}
