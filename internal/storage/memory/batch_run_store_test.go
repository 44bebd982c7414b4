package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"eod-normalizer/internal/storage"
)

func TestBatchRunStore_InsertAndLatest(t *testing.T) {
	store := NewBatchRunStore()
	ctx := context.Background()
	t0 := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
	}

	runs := []*storage.BatchRun{
		{BatchID: "b2", StartedAt: t0.Add(time.Hour), FinishedAt: t0.Add(2 * time.Hour), OutputFingerprint: "f2"},
		{BatchID: "b1", StartedAt: t0, FinishedAt: t0.Add(time.Minute), OutputFingerprint: "f1"},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.BatchID, err)
		}
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.BatchID != "b2" {
		t.Errorf("latest = %s, want b2 (finished last, inserted first)", latest.BatchID)
	}

	got, err := store.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.OutputFingerprint != "f1" {
		t.Errorf("fingerprint = %s, want f1", got.OutputFingerprint)
	}

	if err := store.Insert(ctx, &storage.BatchRun{BatchID: "b1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &storage.BatchRun{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
