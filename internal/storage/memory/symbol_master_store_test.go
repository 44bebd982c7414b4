package memory

import (
	"context"
	"errors"
	"testing"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

func TestSymbolMasterStore_ApplyChanges(t *testing.T) {
	store := NewSymbolMasterStore()
	ctx := context.Background()

	old := &domain.SymbolMasterEntry{
		InstrumentID: "INS1", Exchange: "NSE", Symbol: "OLDNAME",
		Status: domain.SymbolStatusActive, ValidFrom: domain.MustDate("2020-01-01"), LotSize: 1,
	}
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	renamed := &domain.SymbolMasterEntry{
		InstrumentID: "INS1", Exchange: "NSE", Symbol: "NEWNAME",
		Status: domain.SymbolStatusActive, ValidFrom: domain.MustDate("2024-03-01"), LotSize: 1,
	}
	asOf := domain.MustDate("2024-03-01")
	if err := store.ApplyChanges(ctx, []*domain.SymbolMasterEntry{old}, asOf, []*domain.SymbolMasterEntry{renamed}); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(all))
	}

	open, _ := store.GetOpen(ctx)
	if len(open) != 1 || open[0].Symbol != "NEWNAME" {
		t.Errorf("Expected only NEWNAME open, got %+v", open)
	}

	for _, e := range all {
		if e.Symbol == "OLDNAME" && (e.ValidTo == nil || !e.ValidTo.Equal(asOf)) {
			t.Errorf("OLDNAME should be closed at %s, got %v", domain.FormatDate(asOf), e.ValidTo)
		}
	}
}

func TestSymbolMasterStore_ApplyChangesMissingEntry(t *testing.T) {
	store := NewSymbolMasterStore()
	ctx := context.Background()

	ghost := &domain.SymbolMasterEntry{InstrumentID: "X", Exchange: "NSE", Symbol: "X", ValidFrom: domain.MustDate("2020-01-01")}
	err := store.ApplyChanges(ctx, []*domain.SymbolMasterEntry{ghost}, domain.MustDate("2024-01-01"), nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
