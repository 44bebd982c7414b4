package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType classifies a corporate action.
type ActionType string

const (
	ActionSplit           ActionType = "SPLIT"
	ActionBonus           ActionType = "BONUS"
	ActionDividend        ActionType = "DIVIDEND"
	ActionRights          ActionType = "RIGHTS"
	ActionInterestPayment ActionType = "INTEREST_PAYMENT"
	ActionMeeting         ActionType = "MEETING"
	ActionOther           ActionType = "OTHER"
)

// String returns the string representation of ActionType.
func (t ActionType) String() string {
	return string(t)
}

// IsValid checks if the action type is a known variant.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionSplit, ActionBonus, ActionDividend, ActionRights,
		ActionInterestPayment, ActionMeeting, ActionOther:
		return true
	}
	return false
}

// ParseConfidence records how certain the parser is about an event.
type ParseConfidence string

const (
	ConfidenceHigh ParseConfidence = "HIGH" // matched a text rule and extracted all quantities
	ConfidenceLow  ParseConfidence = "LOW"  // classified from the purpose hint only
	ConfidenceNone ParseConfidence = "NONE" // quantities could not be extracted
)

// RawNotice is a corporate-action notice as published by the exchange.
type RawNotice struct {
	Exchange       string
	Symbol         string
	SecurityID     *string
	InstrumentID   string // filled by symbol resolution
	Purpose        string // free text, e.g. "Bonus 2:1"
	PurposeHint    string // structured classification from the feed, may be empty
	ExDate         time.Time
	RecordDate     *time.Time
	FaceValue      decimal.NullDecimal
	Sequence       int64    // declaration sequence; breaks same-ex-date ties
	ReferenceClose *float64 // pre-ex close, required for RIGHTS and dividend drop policy
}

// CorporateActionEvent is one declared action for one instrument.
// Corresponds to corporate_action_events table in PostgreSQL. Append-only.
type CorporateActionEvent struct {
	ActionID          string // PRIMARY KEY, sha256(instrument_id|ex_date|purpose)
	InstrumentID      string
	ActionType        ActionType
	ExDate            time.Time
	RecordDate        *time.Time
	Purpose           string // raw notice text
	Sequence          int64
	RatioNumerator    int64               // SPLIT: old, BONUS/RIGHTS: new
	RatioDenominator  int64               // SPLIT: new, BONUS/RIGHTS: existing
	Amount            decimal.NullDecimal // dividend per share
	SubscriptionPrice decimal.NullDecimal // rights issue price
	FaceValue         decimal.NullDecimal
	ReferenceClose    *float64
	AdjustmentFactor  float64
	ParseConfidence   ParseConfidence
	NeedsReview       bool
	ReviewReason      string
	CreatedAt         time.Time
}

// AffectsPrice reports whether the event changes historical prices.
func (e *CorporateActionEvent) AffectsPrice() bool {
	return e.AdjustmentFactor != 1.0
}

// CompareActionOrder orders events by (ex_date, sequence, action_id).
// Returns -1, 0 or 1. This is the total order of an adjustment timeline.
func CompareActionOrder(a, b *CorporateActionEvent) int {
	if !a.ExDate.Equal(b.ExDate) {
		if a.ExDate.Before(b.ExDate) {
			return -1
		}
		return 1
	}
	if a.Sequence != b.Sequence {
		if a.Sequence < b.Sequence {
			return -1
		}
		return 1
	}
	switch {
	case a.ActionID < b.ActionID:
		return -1
	case a.ActionID > b.ActionID:
		return 1
	}
	return 0
}
