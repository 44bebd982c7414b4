package normalization

import (
	"sort"

	"eod-normalizer/internal/domain"
)

// SortNormalized orders records by (instrument_id ASC, trade_date ASC).
// This is the canonical output order of a batch.
func SortNormalized(records []*domain.NormalizedRecord) {
	sort.Slice(records, func(i, j int) bool {
		return compareNormalized(records[i], records[j]) < 0
	})
}

// SortByTradeDate orders one instrument's records by (trade_date ASC, source ASC, event_id ASC).
func SortByTradeDate(records []*domain.ResolvedRecord) {
	sort.Slice(records, func(i, j int) bool {
		return compareResolved(records[i], records[j]) < 0
	})
}

// compareNormalized returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareNormalized(a, b *domain.NormalizedRecord) int {
	if a.InstrumentID != b.InstrumentID {
		if a.InstrumentID < b.InstrumentID {
			return -1
		}
		return 1
	}
	return a.TradeDate.Compare(b.TradeDate)
}

func compareResolved(a, b *domain.ResolvedRecord) int {
	if c := a.TradeDate.Compare(b.TradeDate); c != 0 {
		return c
	}
	if a.Source != b.Source {
		if a.Source < b.Source {
			return -1
		}
		return 1
	}
	if a.EventID != b.EventID {
		if a.EventID < b.EventID {
			return -1
		}
		return 1
	}
	return 0
}
