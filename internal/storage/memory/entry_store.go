package memory

import (
	"context"
	"sort"
	"sync"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// EntryStore is an in-memory implementation of storage.EntryStore.
type EntryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Entry // keyed by Entry.Key
}

// NewEntryStore creates a new in-memory entry store.
func NewEntryStore() *EntryStore {
	return &EntryStore{data: make(map[string]*domain.Entry)}
}

// Compile-time interface check.
var _ storage.EntryStore = (*EntryStore)(nil)

// Append inserts entries, skipping duplicates by key.
func (s *EntryStore) Append(_ context.Context, entries []*domain.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range entries {
		if e == nil || e.Asset == "" {
			return inserted, storage.ErrInvalidInput
		}
		key := e.Key()
		if _, exists := s.data[key]; exists {
			continue
		}
		cp := *e
		s.data[key] = &cp
		inserted++
	}
	return inserted, nil
}

// Overwrite destructively replaces the (source, category) store.
func (s *EntryStore) Overwrite(_ context.Context, source string, category domain.Category, entries []*domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.data {
		if e.Source == source && e.Category == category {
			delete(s.data, key)
		}
	}
	for _, e := range entries {
		if e == nil || e.Asset == "" {
			return storage.ErrInvalidInput
		}
		cp := *e
		s.data[e.Key()] = &cp
	}
	return nil
}

// ReadRange retrieves entries in [start, end) ordered by timestamp ASC.
func (s *EntryStore) ReadRange(_ context.Context, source string, category domain.Category, start, end int64) ([]*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Entry
	for _, e := range s.data {
		if e.Source == source && e.Category == category && e.Timestamp >= start && e.Timestamp < end {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortEntries(result)
	return result, nil
}

func sortEntries(entries []*domain.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp < entries[j].Timestamp
		}
		return entries[i].Key() < entries[j].Key()
	})
}
