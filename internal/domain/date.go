package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical ISO date layout used for trade, ex and record dates.
const DateLayout = "2006-01-02"

// altDateLayouts are exchange-native layouts accepted on reference inputs.
var altDateLayouts = []string{
	"02-Jan-2006",
	"02-01-2006",
	"02/01/2006",
	"20060102",
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO date (YYYY-MM-DD) into a UTC-midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseFlexibleDate accepts ISO dates plus the exchange-native layouts seen in
// notice files (e.g. 15-Jan-2024).
func ParseFlexibleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range altDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// MustDate is ParseDate for literals known to be valid. Panics otherwise.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
