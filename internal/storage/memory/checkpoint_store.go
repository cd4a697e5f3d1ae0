package memory

import (
	"context"
	"sync"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Checkpoint
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{data: make(map[string]*domain.Checkpoint)}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func checkpointKey(source string, category domain.Category) string {
	return source + "|" + string(category)
}

// Get returns the checkpoint for a source/category.
func (s *CheckpointStore) Get(_ context.Context, source string, category domain.Category) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[checkpointKey(source, category)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *cp
	out.KnownAssets = append([]string(nil), cp.KnownAssets...)
	return &out, nil
}

// Put upserts a checkpoint.
func (s *CheckpointStore) Put(_ context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.Source == "" || cp.Category == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *cp
	stored.KnownAssets = append([]string(nil), cp.KnownAssets...)
	s.data[checkpointKey(cp.Source, cp.Category)] = &stored
	return nil
}
