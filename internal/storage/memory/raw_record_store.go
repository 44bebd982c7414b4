package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// RawRecordStore is an in-memory implementation of storage.RawRecordStore.
type RawRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawRecord // keyed by event_id
}

// NewRawRecordStore creates a new in-memory raw record store.
func NewRawRecordStore() *RawRecordStore {
	return &RawRecordStore{
		data: make(map[string]*domain.RawRecord),
	}
}

// InsertBulk adds multiple raw records. Fails entire batch on duplicate event_id.
func (s *RawRecordStore) InsertBulk(_ context.Context, records []*domain.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.EventID] = struct{}{}
	}

	for _, r := range records {
		recCopy := *r
		s.data[r.EventID] = &recCopy
	}
	return nil
}

// GetByEventID retrieves a raw record by event_id. Returns ErrNotFound if not exists.
func (s *RawRecordStore) GetByEventID(_ context.Context, eventID string) (*domain.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recCopy := *r
	return &recCopy, nil
}

// GetByIngestTimeRange retrieves records ingested within [start, end] (inclusive).
func (s *RawRecordStore) GetByIngestTimeRange(_ context.Context, start, end time.Time) ([]*domain.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawRecord
	for _, r := range s.data {
		if r.IngestTime.Before(start) || r.IngestTime.After(end) {
			continue
		}
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventID < result[j].EventID
	})
	return result, nil
}

var _ storage.RawRecordStore = (*RawRecordStore)(nil)
