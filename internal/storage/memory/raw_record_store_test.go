package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

func rawAt(eventID string, ingest time.Time) *domain.RawRecord {
	closePrice := "100"
	return &domain.RawRecord{
		Envelope: domain.Envelope{EventID: eventID, Source: "NSE_BHAV", IngestTime: ingest},
		Payload:  domain.RawPayload{Close: &closePrice},
	}
}

func TestRawRecordStore_InsertBulkAndQuery(t *testing.T) {
	store := NewRawRecordStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.RawRecord{
		rawAt("e2", t0),
		rawAt("e1", t0.Add(time.Hour)),
		rawAt("e3", t0.Add(48*time.Hour)),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByEventID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByEventID failed: %v", err)
	}
	if *got.Payload.Close != "100" {
		t.Errorf("Close = %s, want 100", *got.Payload.Close)
	}

	inRange, err := store.GetByIngestTimeRange(ctx, t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetByIngestTimeRange failed: %v", err)
	}
	if len(inRange) != 2 || inRange[0].EventID != "e1" || inRange[1].EventID != "e2" {
		t.Errorf("unexpected range result: %d records", len(inRange))
	}

	if _, err := store.GetByEventID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRawRecordStore_DuplicateRejectsWholeBatch(t *testing.T) {
	store := NewRawRecordStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, []*domain.RawRecord{rawAt("e1", t0)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.RawRecord{rawAt("e2", t0), rawAt("e1", t0)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByEventID(ctx, "e2"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("e2 should not be stored when the batch is rejected")
	}

	err = store.InsertBulk(ctx, []*domain.RawRecord{rawAt("e5", t0), rawAt("e5", t0)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	if err := store.InsertBulk(ctx, []*domain.RawRecord{{}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestRawRecordStore_ReturnsCopies(t *testing.T) {
	store := NewRawRecordStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.RawRecord{rawAt("e1", time.Now())}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetByEventID(ctx, "e1")
	got.Source = "MUTATED"

	again, _ := store.GetByEventID(ctx, "e1")
	if again.Source != "NSE_BHAV" {
		t.Errorf("store was mutated through a returned record: %s", again.Source)
	}
}
