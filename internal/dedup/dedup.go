// Package dedup merges same-instrument records reported by several feeds on
// the same trade date, keeping one survivor per group by source priority.
package dedup

import (
	"sort"
	"time"

	"eod-normalizer/internal/domain"
)

// Stats summarizes one dedup pass.
type Stats struct {
	Input             int
	Output            int
	Groups            int
	DuplicatesDropped int
	DroppedBySource   map[string]int
}

// Deduplicator applies a fixed source-priority order. Safe for concurrent use.
type Deduplicator struct {
	rank map[string]int
}

// New creates a Deduplicator. priority lists sources from most to least
// preferred; sources not listed rank after all listed ones.
func New(priority []string) *Deduplicator {
	rank := make(map[string]int, len(priority))
	for i, src := range priority {
		if _, dup := rank[src]; !dup {
			rank[src] = i
		}
	}
	return &Deduplicator{rank: rank}
}

// groupKey identifies records that describe the same instrument-day.
// With a security id the exchange is irrelevant; without one the exchange is
// part of the key so records are never merged across exchanges.
type groupKey struct {
	instrumentID string
	securityID   string
	exchange     string
	symbol       string
	tradeDate    time.Time
}

func keyOf(r *domain.ResolvedRecord) groupKey {
	if r.SecurityID != nil && *r.SecurityID != "" {
		return groupKey{securityID: *r.SecurityID, tradeDate: r.TradeDate}
	}
	return groupKey{exchange: r.Exchange, symbol: r.Symbol, tradeDate: r.TradeDate}
}

func instrumentKeyOf(r *domain.ResolvedRecord) groupKey {
	return groupKey{instrumentID: r.InstrumentID, tradeDate: r.TradeDate}
}

func (d *Deduplicator) rankOf(source string) int {
	if r, ok := d.rank[source]; ok {
		return r
	}
	return len(d.rank)
}

// better reports whether a should survive over b.
func (d *Deduplicator) better(a, b *domain.ResolvedRecord) bool {
	ra, rb := d.rankOf(a.Source), d.rankOf(b.Source)
	if ra != rb {
		return ra < rb
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.EventID < b.EventID
}

// Dedupe keeps exactly one record per group. Dropped records are expected
// overlap, so they are counted but not quarantined. Output is ordered by
// (instrument_id, trade_date, source, event_id); running Dedupe on its own
// output returns the same set.
func (d *Deduplicator) Dedupe(records []*domain.ResolvedRecord) ([]*domain.ResolvedRecord, Stats) {
	return d.reduce(records, keyOf)
}

// Collapse keeps one record per (instrument_id, trade_date) using the same
// source priority as Dedupe. It runs after Dedupe: records without a security
// id that resolved to one instrument on different exchanges meet here.
func (d *Deduplicator) Collapse(records []*domain.ResolvedRecord) ([]*domain.ResolvedRecord, Stats) {
	return d.reduce(records, instrumentKeyOf)
}

func (d *Deduplicator) reduce(records []*domain.ResolvedRecord, key func(*domain.ResolvedRecord) groupKey) ([]*domain.ResolvedRecord, Stats) {
	stats := Stats{Input: len(records), DroppedBySource: make(map[string]int)}

	survivors := make(map[groupKey]*domain.ResolvedRecord, len(records))
	for _, r := range records {
		k := key(r)
		cur, ok := survivors[k]
		switch {
		case !ok:
			survivors[k] = r
		case d.better(r, cur):
			survivors[k] = r
			stats.DroppedBySource[cur.Source]++
			stats.DuplicatesDropped++
		default:
			stats.DroppedBySource[r.Source]++
			stats.DuplicatesDropped++
		}
	}

	out := make([]*domain.ResolvedRecord, 0, len(survivors))
	for _, r := range survivors {
		out = append(out, r)
	}
	Sort(out)

	stats.Groups = len(survivors)
	stats.Output = len(out)
	return out, stats
}

// Merge folds a later pass into s. Input stays that of the first pass;
// output and groups become those of the later one.
func (s *Stats) Merge(next Stats) {
	s.Output = next.Output
	s.Groups = next.Groups
	s.DuplicatesDropped += next.DuplicatesDropped
	if s.DroppedBySource == nil {
		s.DroppedBySource = make(map[string]int, len(next.DroppedBySource))
	}
	for src, n := range next.DroppedBySource {
		s.DroppedBySource[src] += n
	}
}

// Sort orders records by (instrument_id, trade_date, source, event_id).
func Sort(records []*domain.ResolvedRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		if !a.TradeDate.Equal(b.TradeDate) {
			return a.TradeDate.Before(b.TradeDate)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.EventID < b.EventID
	})
}
