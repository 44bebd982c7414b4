package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

func testCorporateAction(actionID, instrumentID string, exDay int, factor float64) *domain.CorporateActionEvent {
	return &domain.CorporateActionEvent{
		ActionID:         actionID,
		InstrumentID:     instrumentID,
		ActionType:       domain.ActionSplit,
		ExDate:           date(2024, 1, exDay),
		Purpose:          "Face Value Split From Rs 10 To Rs 2",
		RatioNumerator:   1,
		RatioDenominator: 5,
		FaceValue:        decimal.NewNullDecimal(decimal.RequireFromString("10")),
		AdjustmentFactor: factor,
		ParseConfidence:  domain.ConfidenceHigh,
	}
}

func TestCorporateActionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCorporateActionStore(pool)

	div := testCorporateAction("act-div", "INS1", 20, 1)
	div.ActionType = domain.ActionDividend
	div.Purpose = "Dividend - Rs 5.50 Per Share"
	div.Amount = decimal.NewNullDecimal(decimal.RequireFromString("5.50"))
	div.RecordDate = ptr(date(2024, 1, 21))
	div.ReferenceClose = ptr(505.0)

	require.NoError(t, store.Insert(ctx, div))

	got, err := store.GetByID(ctx, "act-div")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDividend, got.ActionType)
	assert.True(t, got.ExDate.Equal(date(2024, 1, 20)))
	require.NotNil(t, got.RecordDate)
	assert.True(t, got.RecordDate.Equal(date(2024, 1, 21)))
	require.True(t, got.Amount.Valid)
	assert.True(t, got.Amount.Decimal.Equal(decimal.RequireFromString("5.5")))
	assert.False(t, got.SubscriptionPrice.Valid)
	require.NotNil(t, got.ReferenceClose)
	assert.InDelta(t, 505.0, *got.ReferenceClose, 1e-9)
	assert.NotZero(t, got.CreatedAt)

	err = store.Insert(ctx, div)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCorporateActionStore_TimelineOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCorporateActionStore(pool)

	late := testCorporateAction("act-c", "INS1", 20, 0.5)
	sameDaySecond := testCorporateAction("act-a", "INS1", 15, 0.5)
	sameDaySecond.Sequence = 2
	sameDayFirst := testCorporateAction("act-b", "INS1", 15, 0.2)
	sameDayFirst.Sequence = 1
	other := testCorporateAction("act-z", "INS2", 1, 1)
	other.NeedsReview = true
	other.ReviewReason = "ratio not found"
	other.ParseConfidence = domain.ConfidenceNone

	for _, e := range []*domain.CorporateActionEvent{late, sameDaySecond, other, sameDayFirst} {
		require.NoError(t, store.Insert(ctx, e))
	}

	events, err := store.GetByInstrument(ctx, "INS1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "act-b", events[0].ActionID)
	assert.Equal(t, "act-a", events[1].ActionID)
	assert.Equal(t, "act-c", events[2].ActionID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "act-z", all[3].ActionID)

	review, err := store.GetNeedsReview(ctx)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "ratio not found", review[0].ReviewReason)
}

func TestCorporateActionStore_AppendOnly(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewCorporateActionStore(pool).Insert(ctx, testCorporateAction("act-1", "INS1", 15, 0.2)))

	_, err := pool.Exec(ctx, `UPDATE corporate_action_events SET adjustment_factor = 0.5 WHERE action_id = 'act-1'`)
	assert.Error(t, err)

	_, err = pool.Exec(ctx, `DELETE FROM corporate_action_events WHERE action_id = 'act-1'`)
	assert.Error(t, err)
}
