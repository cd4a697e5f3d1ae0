package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by symbol|interval|timestamp
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{data: make(map[string]*domain.Candle)}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

func candleKey(symbol string, intervalSeconds int, ts int64) string {
	return fmt.Sprintf("%s|%d|%d", symbol, intervalSeconds, ts)
}

// InsertBulk inserts candles, skipping duplicates by (symbol, interval, timestamp).
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.IntervalSeconds <= 0 {
			return inserted, storage.ErrInvalidInput
		}
		key := candleKey(c.Symbol, c.IntervalSeconds, c.Timestamp)
		if _, exists := s.data[key]; exists {
			continue
		}
		cp := *c
		s.data[key] = &cp
		inserted++
	}
	return inserted, nil
}

// GetBySymbol retrieves all candles for a symbol/interval ordered by timestamp ASC.
func (s *CandleStore) GetBySymbol(_ context.Context, symbol string, intervalSeconds int) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.IntervalSeconds == intervalSeconds {
			cp := *c
			result = append(result, &cp)
		}
	}
	sortCandles(result)
	return result, nil
}

// GetByTimeRange retrieves candles with timestamp in [start, end] ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, intervalSeconds int, start, end int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.IntervalSeconds == intervalSeconds && c.Timestamp >= start && c.Timestamp <= end {
			cp := *c
			result = append(result, &cp)
		}
	}
	sortCandles(result)
	return result, nil
}

// LatestTimestamp returns the newest stored timestamp for a symbol/interval.
func (s *CandleStore) LatestTimestamp(_ context.Context, symbol string, intervalSeconds int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	found := false
	for _, c := range s.data {
		if c.Symbol == symbol && c.IntervalSeconds == intervalSeconds {
			if !found || c.Timestamp > latest {
				latest = c.Timestamp
				found = true
			}
		}
	}
	if !found {
		return 0, storage.ErrNotFound
	}
	return latest, nil
}

func sortCandles(candles []*domain.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
}
