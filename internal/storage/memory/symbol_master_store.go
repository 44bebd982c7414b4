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

// SymbolMasterStore is an in-memory implementation of storage.SymbolMasterStore.
type SymbolMasterStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SymbolMasterEntry // keyed by (instrument_id, exchange, symbol, valid_from)
}

// NewSymbolMasterStore creates a new in-memory symbol master store.
func NewSymbolMasterStore() *SymbolMasterStore {
	return &SymbolMasterStore{
		data: make(map[string]*domain.SymbolMasterEntry),
	}
}

func symbolKey(e *domain.SymbolMasterEntry) string {
	return fmt.Sprintf("%s|%s|%s|%s", e.InstrumentID, e.Exchange, e.Symbol, domain.FormatDate(e.ValidFrom))
}

func copyEntry(e *domain.SymbolMasterEntry) *domain.SymbolMasterEntry {
	entryCopy := *e
	if e.ValidTo != nil {
		to := *e.ValidTo
		entryCopy.ValidTo = &to
	}
	if e.SecurityID != nil {
		id := *e.SecurityID
		entryCopy.SecurityID = &id
	}
	return &entryCopy
}

// Insert adds a new entry. Returns ErrDuplicateKey if key exists.
func (s *SymbolMasterStore) Insert(_ context.Context, e *domain.SymbolMasterEntry) error {
	if e == nil || e.InstrumentID == "" || e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := symbolKey(e)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = copyEntry(e)
	return nil
}

// GetAll retrieves every entry ordered by (exchange, symbol, valid_from, instrument_id).
func (s *SymbolMasterStore) GetAll(_ context.Context) ([]*domain.SymbolMasterEntry, error) {
	return s.collect(func(*domain.SymbolMasterEntry) bool { return true }), nil
}

// GetOpen retrieves entries with no valid_to.
func (s *SymbolMasterStore) GetOpen(_ context.Context) ([]*domain.SymbolMasterEntry, error) {
	return s.collect((*domain.SymbolMasterEntry).IsOpen), nil
}

// ApplyChanges closes and opens entries atomically.
func (s *SymbolMasterStore) ApplyChanges(_ context.Context, toClose []*domain.SymbolMasterEntry, validTo time.Time, toOpen []*domain.SymbolMasterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating
	for _, e := range toClose {
		existing, ok := s.data[symbolKey(e)]
		if !ok || !existing.IsOpen() {
			return storage.ErrNotFound
		}
	}
	batchKeys := make(map[string]struct{}, len(toOpen))
	for _, e := range toOpen {
		if e == nil || e.InstrumentID == "" || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := symbolKey(e)
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[key]; exists {
			// A row opened and closed on the same day may be re-opened only if it is the one being closed.
			if !closing(toClose, key) {
				return storage.ErrDuplicateKey
			}
		}
		batchKeys[key] = struct{}{}
	}

	to := domain.DateOf(validTo)
	for _, e := range toClose {
		s.data[symbolKey(e)].ValidTo = &to
	}
	for _, e := range toOpen {
		s.data[symbolKey(e)] = copyEntry(e)
	}
	return nil
}

func closing(toClose []*domain.SymbolMasterEntry, key string) bool {
	for _, e := range toClose {
		if symbolKey(e) == key {
			return true
		}
	}
	return false
}

func (s *SymbolMasterStore) collect(keep func(*domain.SymbolMasterEntry) bool) []*domain.SymbolMasterEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SymbolMasterEntry
	for _, e := range s.data {
		if keep(e) {
			result = append(result, copyEntry(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if !a.ValidFrom.Equal(b.ValidFrom) {
			return a.ValidFrom.Before(b.ValidFrom)
		}
		return a.InstrumentID < b.InstrumentID
	})
	return result
}

var _ storage.SymbolMasterStore = (*SymbolMasterStore)(nil)
