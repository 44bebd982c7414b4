package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/idhash"
)

// ErrInvalidRuleSet is returned when a RuleSet cannot be compiled.
var ErrInvalidRuleSet = errors.New("invalid rule set")

type compiledField struct {
	FieldRule
	pattern *regexp.Regexp
}

// Validator checks raw records against a compiled RuleSet.
// It is pure apart from the injected clock and safe for concurrent use.
type Validator struct {
	version string
	fields  []compiledField
	cross   []CrossFieldRule
	formats *validator.Validate
	now     func() time.Time
}

// NewValidator compiles rs. now stamps quarantine records; nil uses time.Now.
func NewValidator(rs *RuleSet, now func() time.Time) (*Validator, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: nil rule set", ErrInvalidRuleSet)
	}
	if now == nil {
		now = time.Now
	}

	known := make(map[string]bool, len(domain.PayloadFields))
	for _, f := range domain.PayloadFields {
		known[f] = true
	}

	v := &Validator{
		version: rs.Version,
		formats: validator.New(),
		now:     now,
	}

	for _, fr := range rs.Fields {
		if !known[fr.Field] {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidRuleSet, fr.Field)
		}
		cf := compiledField{FieldRule: fr}
		if fr.Pattern != "" {
			re, err := regexp.Compile(fr.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: field %s pattern: %v", ErrInvalidRuleSet, fr.Field, err)
			}
			cf.pattern = re
		}
		if fr.Format != "" {
			if err := checkFormatTag(v.formats, fr.Format); err != nil {
				return nil, fmt.Errorf("%w: field %s format %q: %v", ErrInvalidRuleSet, fr.Field, fr.Format, err)
			}
		}
		v.fields = append(v.fields, cf)
	}

	for _, cr := range rs.CrossField {
		if cr.ID == "" || !known[cr.Left] || !known[cr.Right] {
			return nil, fmt.Errorf("%w: cross-field rule %q", ErrInvalidRuleSet, cr.ID)
		}
		switch cr.Op {
		case OpGTE, OpGT, OpLTE:
		default:
			return nil, fmt.Errorf("%w: cross-field rule %s: unknown op %q", ErrInvalidRuleSet, cr.ID, cr.Op)
		}
		v.cross = append(v.cross, cr)
	}

	return v, nil
}

// checkFormatTag surfaces malformed validator tags at compile time instead of
// as a panic on the first record.
func checkFormatTag(v *validator.Validate, tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	_ = v.Var("", tag)
	return nil
}

// Version returns the rule set version.
func (v *Validator) Version() string {
	return v.version
}

// Validate checks one raw record. Exactly one of the results is non-nil.
// A record fails as a whole; every failing rule is listed in one QuarantineRecord.
func (v *Validator) Validate(raw *domain.RawRecord) (*domain.ValidatedRecord, *domain.QuarantineRecord) {
	violations := v.check(raw)
	if len(violations) > 0 {
		return nil, v.quarantine(raw, violations)
	}

	rec, violations := typed(raw)
	if len(violations) > 0 {
		return nil, v.quarantine(raw, violations)
	}
	return rec, nil
}

func (v *Validator) check(raw *domain.RawRecord) []domain.Violation {
	var violations []domain.Violation

	// Required presence first: one violation no matter how many are missing.
	var missing []string
	for _, fr := range v.fields {
		if fr.Required && value(raw, fr.Field) == nil {
			missing = append(missing, fr.Field)
		}
	}
	if len(missing) > 0 {
		violations = append(violations, domain.Violation{
			RuleID:   RuleID(missing[0], suffixRequired),
			Field:    missing[0],
			RawValue: strings.Join(missing, ","),
			Message:  fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
		})
	}

	for _, fr := range v.fields {
		s := value(raw, fr.Field)
		if s == nil {
			continue
		}
		violations = append(violations, v.checkField(fr, *s)...)
	}

	for _, cr := range v.cross {
		left, lok := number(value(raw, cr.Left))
		right, rok := number(value(raw, cr.Right))
		if !lok || !rok {
			continue
		}
		if !compare(left, cr.Op, right) {
			violations = append(violations, domain.Violation{
				RuleID:   cr.ID,
				Field:    cr.Left,
				RawValue: fmt.Sprintf("%s=%s %s=%s", cr.Left, *value(raw, cr.Left), cr.Right, *value(raw, cr.Right)),
				Message:  fmt.Sprintf("%s must be %s %s", cr.Left, cr.Op, cr.Right),
			})
		}
	}

	return violations
}

func (v *Validator) checkField(fr compiledField, s string) []domain.Violation {
	var out []domain.Violation
	fail := func(suffix, msg string) {
		out = append(out, domain.Violation{
			RuleID:   RuleID(fr.Field, suffix),
			Field:    fr.Field,
			RawValue: s,
			Message:  msg,
		})
	}

	if fr.Numeric {
		n, ok := number(&s)
		if !ok {
			fail(suffixNumeric, "not a number")
		} else {
			if fr.Min != nil && n < *fr.Min {
				fail(suffixMin, fmt.Sprintf("below minimum %g", *fr.Min))
			}
			if fr.Max != nil && n > *fr.Max {
				fail(suffixMax, fmt.Sprintf("above maximum %g", *fr.Max))
			}
		}
	}
	if fr.pattern != nil && !fr.pattern.MatchString(s) {
		fail(suffixPattern, fmt.Sprintf("does not match %s", fr.Pattern))
	}
	if fr.Format != "" {
		if err := v.formats.Var(s, fr.Format); err != nil {
			fail(suffixFormat, fmt.Sprintf("does not satisfy %s", fr.Format))
		}
	}
	return out
}

func (v *Validator) quarantine(raw *domain.RawRecord, violations []domain.Violation) *domain.QuarantineRecord {
	payload, err := json.Marshal(raw)
	if err != nil {
		payload = nil
	}
	first := violations[0]
	return &domain.QuarantineRecord{
		QuarantineID:  idhash.ComputeQuarantineID(raw.EventID, string(domain.StageValidation), first.RuleID),
		EventID:       raw.EventID,
		Source:        raw.Source,
		Stage:         domain.StageValidation,
		ReasonCode:    domain.ReasonValidationFailed,
		RuleID:        first.RuleID,
		Field:         first.Field,
		RawValue:      first.RawValue,
		Violations:    violations,
		Payload:       payload,
		QuarantinedAt: v.now().UTC(),
	}
}

// typed converts a contract-clean record. Fields the rule set left unconstrained
// can still fail conversion; those surface as <field>.type violations.
func typed(raw *domain.RawRecord) (*domain.ValidatedRecord, []domain.Violation) {
	var violations []domain.Violation
	need := func(field string) string {
		s := value(raw, field)
		if s == nil {
			violations = append(violations, domain.Violation{
				RuleID:  RuleID(field, suffixRequired),
				Field:   field,
				Message: "field required to build a typed record",
			})
			return ""
		}
		return *s
	}
	num := func(field string) *float64 {
		s := value(raw, field)
		if s == nil {
			return nil
		}
		n, ok := number(s)
		if !ok {
			violations = append(violations, domain.Violation{
				RuleID:   RuleID(field, "type"),
				Field:    field,
				RawValue: *s,
				Message:  "not a number",
			})
			return nil
		}
		return &n
	}

	rec := &domain.ValidatedRecord{
		EventID:    raw.EventID,
		Source:     raw.Source,
		Exchange:   need(domain.FieldExchange),
		Symbol:     need(domain.FieldSymbol),
		SecurityID: value(raw, domain.FieldSecurityID),
		Prices: domain.Prices{
			Open:       num(domain.FieldOpen),
			High:       num(domain.FieldHigh),
			Low:        num(domain.FieldLow),
			Close:      num(domain.FieldClose),
			PrevClose:  num(domain.FieldPrevClose),
			Last:       num(domain.FieldLast),
			Settlement: num(domain.FieldSettlement),
		},
		Volume:   num(domain.FieldVolume),
		Turnover: num(domain.FieldTurnover),
	}
	if s := value(raw, domain.FieldSeries); s != nil {
		rec.Series = *s
	}

	if ds := need(domain.FieldTradeDate); ds != "" {
		d, err := domain.ParseDate(ds)
		if err != nil {
			violations = append(violations, domain.Violation{
				RuleID:   RuleID(domain.FieldTradeDate, "type"),
				Field:    domain.FieldTradeDate,
				RawValue: ds,
				Message:  "not an ISO date",
			})
		}
		rec.TradeDate = d
	}
	if rec.Prices.Close == nil {
		violations = append(violations, domain.Violation{
			RuleID:  RuleID(domain.FieldClose, suffixRequired),
			Field:   domain.FieldClose,
			Message: "close is required to build a typed record",
		})
	}
	if rec.SecurityID != nil {
		id := strings.ToUpper(*rec.SecurityID)
		rec.SecurityID = &id
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return rec, nil
}

// value returns the trimmed field value, treating "" and "-" as null.
func value(raw *domain.RawRecord, field string) *string {
	s := raw.Field(field)
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" || t == "-" {
		return nil
	}
	return &t
}

// number parses a finite numeric field, accepting thousands separators.
func number(s *string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(*s, ",", ""), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func compare(left float64, op string, right float64) bool {
	switch op {
	case OpGTE:
		return left >= right
	case OpGT:
		return left > right
	case OpLTE:
		return left <= right
	}
	return false
}
