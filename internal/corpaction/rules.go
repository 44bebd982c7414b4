// Package corpaction turns free-text corporate-action notices into typed,
// quantified events with a price adjustment factor.
//
// Classification is an ordered rule table evaluated against the notice text.
// The first matching rule wins, so order is part of the contract: a notice
// reading "Bonus and Dividend" is a BONUS.
package corpaction

import (
	"regexp"

	"github.com/shopspring/decimal"

	"eod-normalizer/internal/domain"
)

// Quantities are the numbers an extractor pulls out of a notice.
type Quantities struct {
	Numerator   int64               // SPLIT: old shares, BONUS/RIGHTS: new shares
	Denominator int64               // SPLIT: new shares, BONUS/RIGHTS: existing shares
	Amount      decimal.NullDecimal // DIVIDEND: cash per share
	Price       decimal.NullDecimal // RIGHTS: subscription price per share
	Partial     string              // non-empty when some quantity could not be extracted
}

// Extractor reads quantities for one action type. Returning an error means
// the notice is malformed for that type and the event is downgraded to OTHER.
type Extractor func(text string, notice domain.RawNotice) (Quantities, error)

// Rule is one row of the classification table.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Type    domain.ActionType
	Extract Extractor // nil for types without quantities
}

// DefaultRules returns the classification table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "split",
			Pattern: regexp.MustCompile(`(?i)\b(split|sub[\s-]?division|sub-divided)\b`),
			Type:    domain.ActionSplit,
			Extract: extractSplit,
		},
		{
			Name:    "bonus",
			Pattern: regexp.MustCompile(`(?i)\bbonus\b`),
			Type:    domain.ActionBonus,
			Extract: extractBonus,
		},
		{
			Name:    "rights",
			Pattern: regexp.MustCompile(`(?i)\brights?\b`),
			Type:    domain.ActionRights,
			Extract: extractRights,
		},
		{
			Name:    "dividend",
			Pattern: regexp.MustCompile(`(?i)\b(dividend|div)\b`),
			Type:    domain.ActionDividend,
			Extract: extractDividend,
		},
		{
			Name:    "interest",
			Pattern: regexp.MustCompile(`(?i)\binterest\b`),
			Type:    domain.ActionInterestPayment,
		},
		{
			Name:    "meeting",
			Pattern: regexp.MustCompile(`(?i)\b(agm|egm|general\s+meeting|meeting)\b`),
			Type:    domain.ActionMeeting,
		},
	}
}

// hintTypes maps structured purpose hints from the feed to action types.
var hintTypes = map[string]domain.ActionType{
	"SPLIT":            domain.ActionSplit,
	"FV SPLIT":         domain.ActionSplit,
	"BONUS":            domain.ActionBonus,
	"RIGHTS":           domain.ActionRights,
	"DIVIDEND":         domain.ActionDividend,
	"INTEREST":         domain.ActionInterestPayment,
	"INTEREST_PAYMENT": domain.ActionInterestPayment,
	"AGM":              domain.ActionMeeting,
	"EGM":              domain.ActionMeeting,
	"MEETING":          domain.ActionMeeting,
}
