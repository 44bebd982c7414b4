// Package adjustment computes cumulative price adjustment factors.
//
// A price dated D is multiplied by the factor of every event whose ex-date is
// strictly after D. Events on or before D are already reflected in the traded
// price, so an ex-date equal to the trade date is not applied.
package adjustment

import (
	"fmt"
	"sort"
	"time"

	"eod-normalizer/internal/domain"
)

// ErrInconsistentTimeline marks a malformed event set. It is fatal for the
// instrument only.
var ErrInconsistentTimeline = domain.ErrInconsistentTimeline

// Step is one event in a timeline with the factor that applies to prices
// dated strictly before its ex-date.
type Step struct {
	ActionID         string
	ActionType       domain.ActionType
	ExDate           time.Time
	EventFactor      float64
	CumulativeFactor float64    // product of this and every later event factor
	AdjustmentDate   *time.Time // latest price-affecting ex-date in this suffix
}

// Timeline is the ordered event sequence of one instrument. Immutable.
type Timeline struct {
	instrumentID string
	steps        []Step
}

// BuildTimeline orders events by (ex_date, sequence, action_id) and computes
// the suffix products in one descending pass.
func BuildTimeline(instrumentID string, events []*domain.CorporateActionEvent) (*Timeline, error) {
	sorted := make([]*domain.CorporateActionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.CompareActionOrder(sorted[i], sorted[j]) < 0
	})

	seen := make(map[string]struct{}, len(sorted))
	for _, e := range sorted {
		if e.InstrumentID != instrumentID {
			return nil, fmt.Errorf("%w: event %s belongs to %s, not %s",
				ErrInconsistentTimeline, e.ActionID, e.InstrumentID, instrumentID)
		}
		if _, dup := seen[e.ActionID]; dup {
			return nil, fmt.Errorf("%w: duplicate action id %s for %s", ErrInconsistentTimeline, e.ActionID, instrumentID)
		}
		seen[e.ActionID] = struct{}{}
		if !(e.AdjustmentFactor > 0) {
			return nil, fmt.Errorf("%w: event %s has factor %g", ErrInconsistentTimeline, e.ActionID, e.AdjustmentFactor)
		}
	}

	steps := make([]Step, len(sorted))
	running := 1.0
	var latest *time.Time
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		running *= e.AdjustmentFactor
		if latest == nil && e.AffectsPrice() {
			d := domain.DateOf(e.ExDate)
			latest = &d
		}
		steps[i] = Step{
			ActionID:         e.ActionID,
			ActionType:       e.ActionType,
			ExDate:           domain.DateOf(e.ExDate),
			EventFactor:      e.AdjustmentFactor,
			CumulativeFactor: running,
			AdjustmentDate:   latest,
		}
	}

	return &Timeline{instrumentID: instrumentID, steps: steps}, nil
}

// InstrumentID returns the instrument the timeline belongs to.
func (t *Timeline) InstrumentID() string {
	return t.instrumentID
}

// Steps returns a copy of the ordered steps.
func (t *Timeline) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// FactorAt returns the cumulative factor for a price dated d and the latest
// price-affecting ex-date that contributed to it (nil when none did).
func (t *Timeline) FactorAt(d time.Time) (float64, *time.Time) {
	if t == nil {
		return 1.0, nil
	}
	d = domain.DateOf(d)
	// First step with ex_date > d; everything from there on applies.
	i := sort.Search(len(t.steps), func(i int) bool {
		return t.steps[i].ExDate.After(d)
	})
	if i == len(t.steps) {
		return 1.0, nil
	}
	s := t.steps[i]
	if s.AdjustmentDate == nil {
		return s.CumulativeFactor, nil
	}
	adj := *s.AdjustmentDate
	return s.CumulativeFactor, &adj
}
