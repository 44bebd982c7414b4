package reporting

import "time"

// Report summarizes one normalization batch.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	BatchID     string

	Summary BatchSummary

	// Sorted by (stage, reason_code)
	QuarantineByReason []QuarantineReasonRow

	// Sorted by instrument_id
	FailedInstruments []FailedInstrumentRow

	// Corporate actions flagged for manual review, sorted like the timeline
	NeedsReview []ReviewRow

	// Errors that did not stop the batch (store writes, batch history)
	Errors []string
}

// BatchSummary contains batch counters.
type BatchSummary struct {
	StartedAt             time.Time
	FinishedAt            time.Time
	SymbolSnapshotVersion string
	RecordsIn             int
	Validated             int
	Resolved              int
	DuplicatesDropped     int
	Instruments           int
	RecordsNormalized     int
	RecordsAdjusted       int
	RecordsQuarantined    int
	OutputFingerprint     string
	Cancelled             bool
}

// QuarantineReasonRow counts quarantined records for one stage and reason.
type QuarantineReasonRow struct {
	Stage      string
	ReasonCode string
	Count      int
	TopRuleID  string // most frequent rule id within the group
}

// FailedInstrumentRow is one instrument excluded from output.
type FailedInstrumentRow struct {
	InstrumentID string
	ReasonCode   string
	Records      int
	Error        string
}

// ReviewRow is one corporate action awaiting manual review.
type ReviewRow struct {
	ActionID     string
	InstrumentID string
	ActionType   string
	ExDate       string
	Purpose      string
	Reason       string
}
