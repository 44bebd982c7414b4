package memory

import (
	"context"
	"sync"

	"eod-normalizer/internal/storage"
)

// BatchRunStore is an in-memory implementation of storage.BatchRunStore.
type BatchRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*storage.BatchRun
	latest *storage.BatchRun
}

// NewBatchRunStore creates a new in-memory batch run store.
func NewBatchRunStore() *BatchRunStore {
	return &BatchRunStore{
		runs: make(map[string]*storage.BatchRun),
	}
}

// Insert records a run. Returns ErrDuplicateKey if batch_id exists.
func (s *BatchRunStore) Insert(_ context.Context, run *storage.BatchRun) error {
	if run == nil || run.BatchID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.BatchID]; exists {
		return storage.ErrDuplicateKey
	}
	runCopy := *run
	s.runs[run.BatchID] = &runCopy
	if s.latest == nil || !runCopy.FinishedAt.Before(s.latest.FinishedAt) {
		s.latest = &runCopy
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *BatchRunStore) GetByID(_ context.Context, batchID string) (*storage.BatchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[batchID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	runCopy := *run
	return &runCopy, nil
}

// GetLatest returns the most recently finished run.
func (s *BatchRunStore) GetLatest(_ context.Context) (*storage.BatchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, storage.ErrNotFound
	}
	runCopy := *s.latest
	return &runCopy, nil
}

var _ storage.BatchRunStore = (*BatchRunStore)(nil)
