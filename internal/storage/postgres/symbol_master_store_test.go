package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

func testSymbolEntry(instrumentID, exchange, symbol string) *domain.SymbolMasterEntry {
	return &domain.SymbolMasterEntry{
		InstrumentID: instrumentID,
		Exchange:     exchange,
		Symbol:       symbol,
		SecurityID:   ptr("INE000A01011"),
		Status:       domain.SymbolStatusActive,
		ValidFrom:    date(2020, 1, 1),
		LotSize:      1,
	}
}

func TestSymbolMasterStore_InsertAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSymbolMasterStore(pool)

	closed := testSymbolEntry("INS1", "NSE", "OLD")
	closed.ValidTo = ptr(date(2022, 6, 1))
	bse := testSymbolEntry("INS1", "BSE", "500001")
	bse.SecurityID = nil

	require.NoError(t, store.Insert(ctx, testSymbolEntry("INS1", "NSE", "ABC")))
	require.NoError(t, store.Insert(ctx, closed))
	require.NoError(t, store.Insert(ctx, bse))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BSE", all[0].Exchange)
	assert.Nil(t, all[0].SecurityID)
	assert.Equal(t, "ABC", all[1].Symbol)
	assert.Equal(t, "OLD", all[2].Symbol)
	require.NotNil(t, all[2].ValidTo)
	assert.True(t, date(2022, 6, 1).Equal(*all[2].ValidTo))

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	err = store.Insert(ctx, testSymbolEntry("INS1", "NSE", "ABC"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSymbolMasterStore_ApplyChanges(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSymbolMasterStore(pool)

	old := testSymbolEntry("INS1", "NSE", "ABC")
	require.NoError(t, store.Insert(ctx, old))

	renamed := testSymbolEntry("INS1", "NSE", "ABCNEW")
	renamed.ValidFrom = date(2024, 3, 1)

	require.NoError(t, store.ApplyChanges(ctx, []*domain.SymbolMasterEntry{old}, date(2024, 3, 1), []*domain.SymbolMasterEntry{renamed}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].ValidTo)
	assert.True(t, date(2024, 3, 1).Equal(*all[0].ValidTo))
	assert.Nil(t, all[1].ValidTo)

	// Closing an already-closed row fails and rolls back the opens
	other := testSymbolEntry("INS2", "NSE", "XYZ")
	other.ValidFrom = date(2024, 4, 1)
	err = store.ApplyChanges(ctx, []*domain.SymbolMasterEntry{old}, date(2024, 4, 1), []*domain.SymbolMasterEntry{other})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "ABCNEW", open[0].Symbol)
}

func TestSymbolMasterStore_ApplyChangesReopenSameDay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSymbolMasterStore(pool)

	entry := testSymbolEntry("INS1", "NSE", "ABC")
	entry.ValidFrom = date(2024, 3, 1)
	require.NoError(t, store.Insert(ctx, entry))

	suspended := *entry
	suspended.Status = domain.SymbolStatusSuspended

	// Same-day correction replaces the row instead of leaving an empty window
	require.NoError(t, store.ApplyChanges(ctx, []*domain.SymbolMasterEntry{entry}, date(2024, 3, 1), []*domain.SymbolMasterEntry{&suspended}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.SymbolStatusSuspended, all[0].Status)
	assert.Nil(t, all[0].ValidTo)
}
