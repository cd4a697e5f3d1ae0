package memory

import (
	"context"
	"sort"
	"sync"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// MovementStore is an in-memory implementation of storage.MovementStore.
type MovementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Movement // keyed by Movement.Key
}

// NewMovementStore creates a new in-memory movement store.
func NewMovementStore() *MovementStore {
	return &MovementStore{data: make(map[string]*domain.Movement)}
}

// Compile-time interface check.
var _ storage.MovementStore = (*MovementStore)(nil)

// Append inserts movements, skipping duplicates by key.
func (s *MovementStore) Append(_ context.Context, movements []*domain.Movement) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, m := range movements {
		if m == nil || m.Asset == "" {
			return inserted, storage.ErrInvalidInput
		}
		key := m.Key()
		if _, exists := s.data[key]; exists {
			continue
		}
		cp := *m
		s.data[key] = &cp
		inserted++
	}
	return inserted, nil
}

// Overwrite destructively replaces the whole ledger.
func (s *MovementStore) Overwrite(_ context.Context, movements []*domain.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.Movement, len(movements))
	for _, m := range movements {
		if m == nil || m.Asset == "" {
			return storage.ErrInvalidInput
		}
		cp := *m
		s.data[m.Key()] = &cp
	}
	return nil
}

// ReadRange retrieves movements in [start, end) ordered by timestamp ASC.
func (s *MovementStore) ReadRange(_ context.Context, start, end int64) ([]*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Movement
	for _, m := range s.data {
		if m.Timestamp >= start && m.Timestamp < end {
			cp := *m
			result = append(result, &cp)
		}
	}
	sortMovements(result)
	return result, nil
}

// ReadAll retrieves the full ledger ordered by timestamp ASC.
func (s *MovementStore) ReadAll(_ context.Context) ([]*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Movement, 0, len(s.data))
	for _, m := range s.data {
		cp := *m
		result = append(result, &cp)
	}
	sortMovements(result)
	return result, nil
}

func sortMovements(movements []*domain.Movement) {
	sort.Slice(movements, func(i, j int) bool {
		if movements[i].Timestamp != movements[j].Timestamp {
			return movements[i].Timestamp < movements[j].Timestamp
		}
		return movements[i].Key() < movements[j].Key()
	})
}
