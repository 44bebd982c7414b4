package domain

import "time"

// QuarantineStage identifies which pipeline stage rejected a record.
type QuarantineStage string

const (
	StageValidation QuarantineStage = "VALIDATION"
	StageResolution QuarantineStage = "RESOLUTION"
	StageAdjustment QuarantineStage = "ADJUSTMENT"
	StageNotice     QuarantineStage = "NOTICE"
)

// Quarantine reason codes.
const (
	ReasonValidationFailed     = "VALIDATION_FAILED"
	ReasonUnknownSymbol        = "UNKNOWN_SYMBOL"
	ReasonAmbiguousSymbol      = "AMBIGUOUS_SYMBOL"
	ReasonInconsistentTimeline = "INCONSISTENT_TIMELINE"
	ReasonAdjustmentFailed     = "ADJUSTMENT_FAILED"
	ReasonStoreFailure         = "STORE_FAILURE"
)

// Violation is a single failed rule.
type Violation struct {
	RuleID   string `json:"rule_id"`
	Field    string `json:"field,omitempty"`
	RawValue string `json:"raw_value,omitempty"`
	Message  string `json:"message"`
}

// QuarantineRecord holds a record that failed a pipeline stage, with enough
// context to replay it after a fix. Corresponds to quarantine_records table
// in PostgreSQL. Never auto-deleted.
type QuarantineRecord struct {
	QuarantineID  string // deterministic hash of (event_id, stage, rule_id)
	EventID       string
	Source        string
	Stage         QuarantineStage
	ReasonCode    string
	RuleID        string // first violated rule
	Field         string // offending field of the first violation
	RawValue      string // offending raw value of the first violation
	Violations    []Violation
	Payload       []byte // original record as JSON
	QuarantinedAt time.Time
}
