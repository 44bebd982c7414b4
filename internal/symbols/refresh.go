package symbols

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// RefreshPlan is the SCD Type 2 change set for one reference refresh.
type RefreshPlan struct {
	Close     []*domain.SymbolMasterEntry // open rows whose mapping changed or vanished
	Open      []*domain.SymbolMasterEntry // new rows, valid from asOf
	Unchanged int
}

// IsEmpty reports whether the refresh changes nothing.
func (p *RefreshPlan) IsEmpty() bool {
	return len(p.Close) == 0 && len(p.Open) == 0
}

type rowKey struct {
	instrumentID string
	exchange     string
	symbol       string
}

// PlanRefresh compares the currently open rows with an incoming full listing.
// Rows present in both with the same attributes are left alone. Changed rows
// are closed at asOf and reopened with the new attributes; rows missing from
// the listing are closed; new rows are opened at asOf.
func PlanRefresh(open, incoming []*domain.SymbolMasterEntry, asOf time.Time) *RefreshPlan {
	asOf = domain.DateOf(asOf)
	plan := &RefreshPlan{}

	current := make(map[rowKey]*domain.SymbolMasterEntry, len(open))
	for _, e := range open {
		current[rowKey{e.InstrumentID, e.Exchange, e.Symbol}] = e
	}

	seen := make(map[rowKey]bool, len(incoming))
	for _, in := range incoming {
		k := rowKey{in.InstrumentID, in.Exchange, in.Symbol}
		if seen[k] {
			continue
		}
		seen[k] = true

		cur, ok := current[k]
		if ok && cur.SameAttributes(in) {
			plan.Unchanged++
			continue
		}
		if ok {
			plan.Close = append(plan.Close, cur)
		}
		next := *in
		next.ValidFrom = asOf
		next.ValidTo = nil
		plan.Open = append(plan.Open, &next)
	}

	for k, cur := range current {
		if !seen[k] {
			plan.Close = append(plan.Close, cur)
		}
	}

	sortEntries(plan.Close)
	sortEntries(plan.Open)
	return plan
}

// Refresh applies an incoming full listing to store as of asOf.
func Refresh(ctx context.Context, store storage.SymbolMasterStore, incoming []*domain.SymbolMasterEntry, asOf time.Time) (*RefreshPlan, error) {
	open, err := store.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open symbol master rows: %w", err)
	}

	plan := PlanRefresh(open, incoming, asOf)
	if plan.IsEmpty() {
		return plan, nil
	}
	if err := store.ApplyChanges(ctx, plan.Close, domain.DateOf(asOf), plan.Open); err != nil {
		return nil, fmt.Errorf("apply symbol master refresh: %w", err)
	}
	return plan, nil
}

func sortEntries(list []*domain.SymbolMasterEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Exchange != list[j].Exchange {
			return list[i].Exchange < list[j].Exchange
		}
		if list[i].Symbol != list[j].Symbol {
			return list[i].Symbol < list[j].Symbol
		}
		return list[i].InstrumentID < list[j].InstrumentID
	})
}
