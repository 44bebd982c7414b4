package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// NormalizedRecordStore is an in-memory implementation of storage.NormalizedRecordStore.
type NormalizedRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NormalizedRecord // keyed by (instrument_id, trade_date)
}

// NewNormalizedRecordStore creates a new in-memory normalized record store.
func NewNormalizedRecordStore() *NormalizedRecordStore {
	return &NormalizedRecordStore{
		data: make(map[string]*domain.NormalizedRecord),
	}
}

func normalizedKey(instrumentID string, tradeDate time.Time) string {
	return fmt.Sprintf("%s|%s", instrumentID, domain.FormatDate(tradeDate))
}

// Upsert writes records, replacing existing rows with the same key.
func (s *NormalizedRecordStore) Upsert(_ context.Context, records []*domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.InstrumentID == "" {
			return storage.ErrInvalidInput
		}
		key := normalizedKey(r.InstrumentID, r.TradeDate)
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recCopy := *r
		s.data[normalizedKey(r.InstrumentID, r.TradeDate)] = &recCopy
	}
	return nil
}

// GetByInstrument retrieves records for an instrument, ordered by trade_date ASC.
func (s *NormalizedRecordStore) GetByInstrument(_ context.Context, instrumentID string) ([]*domain.NormalizedRecord, error) {
	return s.collect(func(r *domain.NormalizedRecord) bool {
		return r.InstrumentID == instrumentID
	}), nil
}

// GetByDateRange retrieves records with trade_date within [start, end] (inclusive).
func (s *NormalizedRecordStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.NormalizedRecord, error) {
	return s.collect(func(r *domain.NormalizedRecord) bool {
		return !r.TradeDate.Before(start) && !r.TradeDate.After(end)
	}), nil
}

// Len returns the number of stored rows.
func (s *NormalizedRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *NormalizedRecordStore) collect(keep func(*domain.NormalizedRecord) bool) []*domain.NormalizedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedRecord
	for _, r := range s.data {
		if keep(r) {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].InstrumentID != result[j].InstrumentID {
			return result[i].InstrumentID < result[j].InstrumentID
		}
		return result[i].TradeDate.Before(result[j].TradeDate)
	})
	return result
}

var _ storage.NormalizedRecordStore = (*NormalizedRecordStore)(nil)
