// Package validation enforces the record contract on raw and normalized records.
// Rules are data: a RuleSet can be loaded from YAML and is compiled once per batch.
package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"eod-normalizer/internal/domain"
)

// FieldRule constrains one payload field.
type FieldRule struct {
	Field    string   `yaml:"field"`
	Required bool     `yaml:"required"`
	Numeric  bool     `yaml:"numeric"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"` // RE2 regular expression, anchored by the author
	Format   string   `yaml:"format,omitempty"`  // go-playground/validator tag, e.g. "datetime=2006-01-02"
}

// Cross-field comparison operators.
const (
	OpGTE = "gte"
	OpGT  = "gt"
	OpLTE = "lte"
)

// CrossFieldRule compares two numeric fields of the same record.
// It is evaluated only when both fields are present and numeric.
type CrossFieldRule struct {
	ID    string `yaml:"id"`
	Left  string `yaml:"left"`
	Op    string `yaml:"op"`
	Right string `yaml:"right"`
}

// RuleSet is the full record contract for one schema version.
type RuleSet struct {
	Version    string           `yaml:"version"`
	Fields     []FieldRule      `yaml:"fields"`
	CrossField []CrossFieldRule `yaml:"cross_field"`
}

// Rule id suffixes.
const (
	suffixRequired = "required"
	suffixNumeric  = "numeric"
	suffixMin      = "min"
	suffixMax      = "max"
	suffixPattern  = "pattern"
	suffixFormat   = "format"
)

// RuleID returns the stable id of a per-field rule.
func RuleID(field, suffix string) string {
	return field + "." + suffix
}

// LoadRuleSet reads a RuleSet from a YAML file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set %s: %w", path, err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", path, err)
	}
	return &rs, nil
}

func f64(v float64) *float64 { return &v }

// DefaultRuleSet returns the exchange daily-feed contract.
func DefaultRuleSet() *RuleSet {
	price := func(field string, required bool) FieldRule {
		return FieldRule{Field: field, Required: required, Numeric: true, Min: f64(0.01)}
	}

	return &RuleSet{
		Version: "1",
		Fields: []FieldRule{
			{Field: domain.FieldExchange, Required: true, Pattern: `^[A-Z]{2,10}$`},
			{Field: domain.FieldSymbol, Required: true, Pattern: `^[A-Z0-9&._-]{1,20}$`},
			{Field: domain.FieldSeries, Pattern: `^[A-Z0-9]{1,3}$`},
			{Field: domain.FieldSecurityID, Pattern: `^[A-Z]{2}[A-Z0-9]{9}[0-9]$`, Format: "alphanum,len=12"},
			{Field: domain.FieldTradeDate, Required: true, Format: "datetime=2006-01-02"},
			price(domain.FieldOpen, false),
			price(domain.FieldHigh, false),
			price(domain.FieldLow, false),
			price(domain.FieldClose, true),
			price(domain.FieldPrevClose, false),
			price(domain.FieldLast, false),
			price(domain.FieldSettlement, false),
			{Field: domain.FieldVolume, Numeric: true, Min: f64(0)},
			{Field: domain.FieldTurnover, Numeric: true, Min: f64(0)},
		},
		CrossField: []CrossFieldRule{
			{ID: "high_gte_low", Left: domain.FieldHigh, Op: OpGTE, Right: domain.FieldLow},
		},
	}
}
