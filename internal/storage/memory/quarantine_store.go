package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// QuarantineStore is an in-memory implementation of storage.QuarantineStore.
type QuarantineStore struct {
	mu   sync.RWMutex
	data map[string]*domain.QuarantineRecord // keyed by quarantine_id
}

// NewQuarantineStore creates a new in-memory quarantine store.
func NewQuarantineStore() *QuarantineStore {
	return &QuarantineStore{
		data: make(map[string]*domain.QuarantineRecord),
	}
}

func copyQuarantine(q *domain.QuarantineRecord) *domain.QuarantineRecord {
	qCopy := *q
	qCopy.Violations = append([]domain.Violation(nil), q.Violations...)
	qCopy.Payload = append([]byte(nil), q.Payload...)
	return &qCopy
}

// Insert adds a quarantine record. Returns ErrDuplicateKey if quarantine_id exists.
func (s *QuarantineStore) Insert(_ context.Context, q *domain.QuarantineRecord) error {
	if q == nil || q.QuarantineID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[q.QuarantineID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[q.QuarantineID] = copyQuarantine(q)
	return nil
}

// GetByEventID retrieves all quarantine records for an event.
func (s *QuarantineStore) GetByEventID(_ context.Context, eventID string) ([]*domain.QuarantineRecord, error) {
	return s.collect(func(q *domain.QuarantineRecord) bool { return q.EventID == eventID }), nil
}

// GetByReason retrieves all records with a reason code.
func (s *QuarantineStore) GetByReason(_ context.Context, reasonCode string) ([]*domain.QuarantineRecord, error) {
	return s.collect(func(q *domain.QuarantineRecord) bool { return q.ReasonCode == reasonCode }), nil
}

// GetByTimeRange retrieves records quarantined within [start, end] (inclusive).
func (s *QuarantineStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.QuarantineRecord, error) {
	return s.collect(func(q *domain.QuarantineRecord) bool {
		return !q.QuarantinedAt.Before(start) && !q.QuarantinedAt.After(end)
	}), nil
}

func (s *QuarantineStore) collect(keep func(*domain.QuarantineRecord) bool) []*domain.QuarantineRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QuarantineRecord
	for _, q := range s.data {
		if keep(q) {
			result = append(result, copyQuarantine(q))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].QuarantinedAt.Equal(result[j].QuarantinedAt) {
			return result[i].QuarantinedAt.Before(result[j].QuarantinedAt)
		}
		return result[i].QuarantineID < result[j].QuarantineID
	})
	return result
}

var _ storage.QuarantineStore = (*QuarantineStore)(nil)
