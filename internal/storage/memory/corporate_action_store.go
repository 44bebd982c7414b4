package memory

import (
	"context"
	"sort"
	"sync"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// CorporateActionStore is an in-memory implementation of storage.CorporateActionStore.
type CorporateActionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CorporateActionEvent // keyed by action_id
}

// NewCorporateActionStore creates a new in-memory corporate action store.
func NewCorporateActionStore() *CorporateActionStore {
	return &CorporateActionStore{
		data: make(map[string]*domain.CorporateActionEvent),
	}
}

func copyEvent(e *domain.CorporateActionEvent) *domain.CorporateActionEvent {
	eventCopy := *e
	if e.RecordDate != nil {
		rd := *e.RecordDate
		eventCopy.RecordDate = &rd
	}
	if e.ReferenceClose != nil {
		rc := *e.ReferenceClose
		eventCopy.ReferenceClose = &rc
	}
	return &eventCopy
}

// Insert adds a new event. Returns ErrDuplicateKey if action_id exists.
func (s *CorporateActionStore) Insert(_ context.Context, e *domain.CorporateActionEvent) error {
	if e == nil || e.ActionID == "" || e.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ActionID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.ActionID] = copyEvent(e)
	return nil
}

// GetByID retrieves an event by action_id. Returns ErrNotFound if not exists.
func (s *CorporateActionStore) GetByID(_ context.Context, actionID string) (*domain.CorporateActionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[actionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyEvent(e), nil
}

// GetByInstrument retrieves events for an instrument in timeline order.
func (s *CorporateActionStore) GetByInstrument(_ context.Context, instrumentID string) ([]*domain.CorporateActionEvent, error) {
	return s.collect(func(e *domain.CorporateActionEvent) bool {
		return e.InstrumentID == instrumentID
	}), nil
}

// GetAll retrieves every event ordered by (instrument_id, ex_date, sequence, action_id).
func (s *CorporateActionStore) GetAll(_ context.Context) ([]*domain.CorporateActionEvent, error) {
	return s.collect(func(*domain.CorporateActionEvent) bool { return true }), nil
}

// GetNeedsReview retrieves events flagged for manual review.
func (s *CorporateActionStore) GetNeedsReview(_ context.Context) ([]*domain.CorporateActionEvent, error) {
	return s.collect(func(e *domain.CorporateActionEvent) bool { return e.NeedsReview }), nil
}

func (s *CorporateActionStore) collect(keep func(*domain.CorporateActionEvent) bool) []*domain.CorporateActionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CorporateActionEvent
	for _, e := range s.data {
		if keep(e) {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].InstrumentID != result[j].InstrumentID {
			return result[i].InstrumentID < result[j].InstrumentID
		}
		return domain.CompareActionOrder(result[i], result[j]) < 0
	})
	return result
}

var _ storage.CorporateActionStore = (*CorporateActionStore)(nil)
