package corpaction

import (
	"fmt"
	"strings"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/idhash"
)

// Options configures a Parser.
type Options struct {
	Rules          []Rule // nil uses DefaultRules
	DividendPolicy DividendPolicy
	Now            func() time.Time // stamps CreatedAt; nil uses time.Now
}

// Parser classifies and quantifies notices. Safe for concurrent use.
type Parser struct {
	rules  []Rule
	policy DividendPolicy
	now    func() time.Time
}

// NewParser creates a Parser.
func NewParser(opts Options) *Parser {
	p := &Parser{
		rules:  opts.Rules,
		policy: opts.DividendPolicy,
		now:    opts.Now,
	}
	if p.rules == nil {
		p.rules = DefaultRules()
	}
	if p.policy == "" {
		p.policy = DividendPolicyNone
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Policy returns the configured dividend policy.
func (p *Parser) Policy() DividendPolicy {
	return p.policy
}

// Classify returns the action type the text rules assign to a purpose, or
// OTHER when no rule matches.
func (p *Parser) Classify(purpose string) domain.ActionType {
	if r := p.match(normalizeText(purpose)); r != nil {
		return r.Type
	}
	return domain.ActionOther
}

func (p *Parser) match(text string) *Rule {
	for i := range p.rules {
		if p.rules[i].Pattern.MatchString(text) {
			return &p.rules[i]
		}
	}
	return nil
}

func (p *Parser) ruleFor(t domain.ActionType) *Rule {
	for i := range p.rules {
		if p.rules[i].Type == t {
			return &p.rules[i]
		}
	}
	return nil
}

// Parse converts a notice into an event. It never fails: notices that cannot
// be quantified become no-op events (factor 1.0) flagged for review.
func (p *Parser) Parse(notice domain.RawNotice) *domain.CorporateActionEvent {
	text := normalizeText(notice.Purpose)

	e := &domain.CorporateActionEvent{
		ActionID:         idhash.ComputeActionID(notice.InstrumentID, notice.ExDate, notice.Purpose),
		InstrumentID:     notice.InstrumentID,
		ActionType:       domain.ActionOther,
		ExDate:           domain.DateOf(notice.ExDate),
		RecordDate:       notice.RecordDate,
		Purpose:          notice.Purpose,
		Sequence:         notice.Sequence,
		FaceValue:        notice.FaceValue,
		ReferenceClose:   notice.ReferenceClose,
		AdjustmentFactor: 1.0,
		ParseConfidence:  domain.ConfidenceHigh,
		CreatedAt:        p.now().UTC(),
	}

	rule := p.match(text)
	if rule == nil {
		// Fall back to the structured hint with reduced confidence.
		t, ok := hintTypes[strings.ToUpper(strings.TrimSpace(notice.PurposeHint))]
		if !ok {
			e.ParseConfidence = domain.ConfidenceNone
			if notice.PurposeHint != "" {
				e.NeedsReview = true
				e.ReviewReason = fmt.Sprintf("unrecognized purpose hint %q", notice.PurposeHint)
			}
			return e
		}
		e.ParseConfidence = domain.ConfidenceLow
		rule = p.ruleFor(t)
		if rule == nil {
			e.ActionType = t
			return e
		}
	}

	e.ActionType = rule.Type
	if rule.Extract == nil {
		return e
	}

	q, err := rule.Extract(text, notice)
	if err != nil {
		e.ActionType = domain.ActionOther
		e.ParseConfidence = domain.ConfidenceNone
		e.NeedsReview = true
		e.ReviewReason = fmt.Sprintf("%s: %v", rule.Name, err)
		return e
	}

	e.RatioNumerator = q.Numerator
	e.RatioDenominator = q.Denominator
	e.Amount = q.Amount
	e.SubscriptionPrice = q.Price

	res := computeFactor(rule.Type, q, notice, p.policy)
	e.AdjustmentFactor = res.factor
	if res.review != "" {
		e.NeedsReview = true
		e.ReviewReason = res.review
		if e.ParseConfidence == domain.ConfidenceHigh {
			e.ParseConfidence = domain.ConfidenceLow
		}
	} else if q.Partial != "" {
		// Missing quantity without price effect under the current policy.
		e.ParseConfidence = domain.ConfidenceLow
	}
	return e
}
