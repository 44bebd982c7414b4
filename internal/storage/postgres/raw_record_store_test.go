package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

func testRawRecord(eventID string, ingest time.Time) *domain.RawRecord {
	return &domain.RawRecord{
		Envelope: domain.Envelope{
			EventID:       eventID,
			EventTime:     ingest.Add(-time.Hour),
			IngestTime:    ingest,
			Source:        "NSE_BHAV",
			SchemaVersion: "1.0",
			EntityID:      "NSE",
		},
		Payload: domain.RawPayload{
			Exchange:  ptr("NSE"),
			Symbol:    ptr("ABC"),
			TradeDate: ptr("2024-01-12"),
			Open:      ptr("2490.00"),
			High:      ptr("2510.50"),
			Low:       ptr("2480.00"),
			Close:     ptr("2500.00"),
			Volume:    ptr("120000"),
		},
	}
}

func TestRawRecordStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawRecordStore(pool)

	ingest := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)
	records := []*domain.RawRecord{
		testRawRecord("evt-2", ingest),
		testRawRecord("evt-1", ingest.Add(time.Minute)),
	}
	require.NoError(t, store.InsertBulk(ctx, records))

	got, err := store.GetByEventID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "NSE_BHAV", got.Source)
	assert.Equal(t, ingest.Add(time.Minute), got.IngestTime)
	require.NotNil(t, got.Payload.Close)
	assert.Equal(t, "2500.00", *got.Payload.Close)
	assert.Nil(t, got.Payload.Turnover)

	// Range is inclusive and ordered by event_id
	ranged, err := store.GetByIngestTimeRange(ctx, ingest, ingest.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "evt-1", ranged[0].EventID)
	assert.Equal(t, "evt-2", ranged[1].EventID)
}

func TestRawRecordStore_InsertBulkDuplicateIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawRecordStore(pool)
	ingest := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertBulk(ctx, []*domain.RawRecord{testRawRecord("evt-1", ingest)}))

	err := store.InsertBulk(ctx, []*domain.RawRecord{
		testRawRecord("evt-2", ingest),
		testRawRecord("evt-1", ingest),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// evt-2 must not have been committed
	_, err = store.GetByEventID(ctx, "evt-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Duplicate inside the batch itself
	err = store.InsertBulk(ctx, []*domain.RawRecord{
		testRawRecord("evt-3", ingest),
		testRawRecord("evt-3", ingest),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRawRecordStore_GetByEventIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewRawRecordStore(pool).GetByEventID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
