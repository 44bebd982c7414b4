// Package symbols resolves exchange-native symbols to canonical instruments
// against a frozen, versioned copy of the symbol master.
package symbols

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// Resolution errors. Callers quarantine with the matching reason code.
var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrAmbiguousSymbol = errors.New("ambiguous symbol")
)

// ReasonCode maps a resolution error to its quarantine reason code.
func ReasonCode(err error) string {
	if errors.Is(err, ErrAmbiguousSymbol) {
		return domain.ReasonAmbiguousSymbol
	}
	return domain.ReasonUnknownSymbol
}

type lookupKey struct {
	exchange string
	symbol   string
}

// Snapshot is an immutable view of the symbol master. Safe for concurrent use.
type Snapshot struct {
	version string
	entries map[lookupKey][]domain.SymbolMasterEntry
	size    int
}

// NewSnapshot freezes entries under version. Entries are copied.
func NewSnapshot(version string, entries []*domain.SymbolMasterEntry) *Snapshot {
	s := &Snapshot{
		version: version,
		entries: make(map[lookupKey][]domain.SymbolMasterEntry),
	}
	for _, e := range entries {
		k := lookupKey{exchange: e.Exchange, symbol: e.Symbol}
		s.entries[k] = append(s.entries[k], *e)
		s.size++
	}
	for k := range s.entries {
		list := s.entries[k]
		sort.Slice(list, func(i, j int) bool {
			if !list[i].ValidFrom.Equal(list[j].ValidFrom) {
				return list[i].ValidFrom.Before(list[j].ValidFrom)
			}
			return list[i].InstrumentID < list[j].InstrumentID
		})
	}
	return s
}

// LoadSnapshot reads the whole symbol master from store and freezes it.
func LoadSnapshot(ctx context.Context, store storage.SymbolMasterStore, version string) (*Snapshot, error) {
	entries, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symbol master: %w", err)
	}
	return NewSnapshot(version, entries), nil
}

// Version returns the snapshot version.
func (s *Snapshot) Version() string {
	return s.version
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	return s.size
}

// Resolve returns the instrument whose entry for (symbol, exchange) covers asOf.
// Zero matches yields ErrUnknownSymbol; more than one yields ErrAmbiguousSymbol.
func (s *Snapshot) Resolve(symbol, exchange string, asOf time.Time) (string, error) {
	e, err := s.Lookup(symbol, exchange, asOf)
	if err != nil {
		return "", err
	}
	return e.InstrumentID, nil
}

// Lookup is Resolve returning the full matching entry.
func (s *Snapshot) Lookup(symbol, exchange string, asOf time.Time) (domain.SymbolMasterEntry, error) {
	asOf = domain.DateOf(asOf)

	var match []domain.SymbolMasterEntry
	for _, e := range s.entries[lookupKey{exchange: exchange, symbol: symbol}] {
		if e.Covers(asOf) {
			match = append(match, e)
		}
	}

	switch len(match) {
	case 0:
		return domain.SymbolMasterEntry{}, fmt.Errorf("%w: %s/%s as of %s", ErrUnknownSymbol, exchange, symbol, domain.FormatDate(asOf))
	case 1:
		return match[0], nil
	default:
		ids := make([]string, len(match))
		for i, e := range match {
			ids[i] = e.InstrumentID
		}
		return domain.SymbolMasterEntry{}, fmt.Errorf("%w: %s/%s as of %s matches %v",
			ErrAmbiguousSymbol, exchange, symbol, domain.FormatDate(asOf), ids)
	}
}

// ResolveRecord maps a validated record to its instrument.
func (s *Snapshot) ResolveRecord(rec *domain.ValidatedRecord) (*domain.ResolvedRecord, error) {
	e, err := s.Lookup(rec.Symbol, rec.Exchange, rec.TradeDate)
	if err != nil {
		return nil, err
	}
	return &domain.ResolvedRecord{
		ValidatedRecord: *rec,
		InstrumentID:    e.InstrumentID,
		LotSize:         e.LotSize,
	}, nil
}
