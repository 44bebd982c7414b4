package ingestion

import (
	"errors"
	"sort"

	"eod-normalizer/internal/domain"
)

// ErrInvalidOrdering is returned when records are not properly ordered.
var ErrInvalidOrdering = errors.New("records are not in deterministic order")

// SortRawRecords orders records by (ingest_time ASC, event_id ASC).
func SortRawRecords(records []*domain.RawRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return compareRawRecords(records[i], records[j]) < 0
	})
}

// SortNotices orders notices by (ex_date ASC, exchange ASC, symbol ASC, sequence ASC).
// Stable, so notices equal on every key keep their file order.
func SortNotices(notices []domain.RawNotice) {
	sort.SliceStable(notices, func(i, j int) bool {
		return compareNotices(&notices[i], &notices[j]) < 0
	})
}

// ValidateRawRecordOrdering checks if records are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateRawRecordOrdering(records []*domain.RawRecord) error {
	for i := 1; i < len(records); i++ {
		if compareRawRecords(records[i-1], records[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareRawRecords returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (ingest_time ASC, event_id ASC)
func compareRawRecords(a, b *domain.RawRecord) int {
	if !a.IngestTime.Equal(b.IngestTime) {
		if a.IngestTime.Before(b.IngestTime) {
			return -1
		}
		return 1
	}
	return compareStrings(a.EventID, b.EventID)
}

func compareNotices(a, b *domain.RawNotice) int {
	if !a.ExDate.Equal(b.ExDate) {
		if a.ExDate.Before(b.ExDate) {
			return -1
		}
		return 1
	}
	if c := compareStrings(a.Exchange, b.Exchange); c != 0 {
		return c
	}
	if c := compareStrings(a.Symbol, b.Symbol); c != 0 {
		return c
	}
	switch {
	case a.Sequence < b.Sequence:
		return -1
	case a.Sequence > b.Sequence:
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
