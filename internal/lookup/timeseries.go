package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// ErrNoPriceData is returned when no close exists before the requested date.
var ErrNoPriceData = errors.New("no price data available")

// ClosePoint is one unadjusted daily close.
type ClosePoint struct {
	Date  time.Time
	Close float64
}

// CloseBefore returns the close of the latest point strictly before target.
// points must be ordered by Date ASC.
// Returns ErrNoPriceData if no point precedes target.
func CloseBefore(target time.Time, points []ClosePoint) (float64, error) {
	i := sort.Search(len(points), func(i int) bool {
		return !points[i].Date.Before(target)
	})
	if i == 0 {
		return 0, ErrNoPriceData
	}
	return points[i-1].Close, nil
}

// CloseIndex holds unadjusted close history per instrument. Safe for concurrent use.
type CloseIndex struct {
	mu     sync.RWMutex
	points map[string][]ClosePoint
	sorted bool
}

// NewCloseIndex creates an empty index.
func NewCloseIndex() *CloseIndex {
	return &CloseIndex{points: make(map[string][]ClosePoint), sorted: true}
}

// Add records a close. Later adds for the same date win.
func (x *CloseIndex) Add(instrumentID string, date time.Time, closePrice float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.points[instrumentID] = append(x.points[instrumentID], ClosePoint{Date: domain.DateOf(date), Close: closePrice})
	x.sorted = false
}

func (x *CloseIndex) ensureSorted() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.sorted {
		return
	}
	for id, pts := range x.points {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
		// Keep the last write per date.
		out := pts[:0]
		for i, p := range pts {
			if i+1 < len(pts) && pts[i+1].Date.Equal(p.Date) {
				continue
			}
			out = append(out, p)
		}
		x.points[id] = out
	}
	x.sorted = true
}

// CloseBefore returns the unadjusted close strictly before exDate.
func (x *CloseIndex) CloseBefore(_ context.Context, instrumentID string, exDate time.Time) (float64, error) {
	x.ensureSorted()
	x.mu.RLock()
	defer x.mu.RUnlock()
	return CloseBefore(domain.DateOf(exDate), x.points[instrumentID])
}

// Len returns the number of instruments indexed.
func (x *CloseIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}

// LoadCloseIndex builds an index from stored normalized history within [start, end].
// Stored closes are adjusted, so each is divided by its own adjustment factor
// to recover the traded price.
func LoadCloseIndex(ctx context.Context, store storage.NormalizedRecordStore, start, end time.Time) (*CloseIndex, error) {
	records, err := store.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load normalized history: %w", err)
	}

	x := NewCloseIndex()
	for _, r := range records {
		if r.Prices.Close == nil || r.AdjustmentFactor <= 0 {
			continue
		}
		x.Add(r.InstrumentID, r.TradeDate, *r.Prices.Close/r.AdjustmentFactor)
	}
	return x, nil
}

// IndexResolved builds an index from resolved (unadjusted) batch records.
func IndexResolved(records []*domain.ResolvedRecord) *CloseIndex {
	x := NewCloseIndex()
	for _, r := range records {
		if r.Prices.Close != nil {
			x.Add(r.InstrumentID, r.TradeDate, *r.Prices.Close)
		}
	}
	return x
}
