package storage

import (
	"context"

	"exchange-ledger/internal/domain"
)

// EntryStore persists per-category raw entries (full projection).
// The store is append-only: rows are deduplicated by Entry.Key and never
// updated. Boundary-adjacent records legitimately re-fetched by the update
// protocol are silently skipped on append.
type EntryStore interface {
	// Append inserts entries, skipping any whose key already exists.
	// Returns the number of rows actually inserted.
	Append(ctx context.Context, entries []*domain.Entry) (int, error)

	// Overwrite destructively replaces the (source, category) store with the
	// given entries. Used by full-rebuild updates.
	Overwrite(ctx context.Context, source string, category domain.Category, entries []*domain.Entry) error

	// ReadRange retrieves entries for a source/category with timestamp in
	// [start, end), ordered by timestamp ASC.
	ReadRange(ctx context.Context, source string, category domain.Category, start, end int64) ([]*domain.Entry, error)
}

// MovementStore persists the canonical ledger (base projections).
// Same append-only discipline as EntryStore.
type MovementStore interface {
	// Append inserts movements, skipping duplicates by key.
	// Returns the number of rows actually inserted.
	Append(ctx context.Context, movements []*domain.Movement) (int, error)

	// Overwrite destructively replaces the whole ledger.
	Overwrite(ctx context.Context, movements []*domain.Movement) error

	// ReadRange retrieves movements with timestamp in [start, end),
	// ordered by timestamp ASC.
	ReadRange(ctx context.Context, start, end int64) ([]*domain.Movement, error)

	// ReadAll retrieves the full ledger ordered by timestamp ASC.
	ReadAll(ctx context.Context) ([]*domain.Movement, error)
}

// CheckpointStore persists the per-(source, category) update high-water mark.
type CheckpointStore interface {
	// Get returns the checkpoint for a source/category.
	// Returns ErrNotFound if no update has ever completed.
	Get(ctx context.Context, source string, category domain.Category) (*domain.Checkpoint, error)

	// Put upserts a checkpoint.
	Put(ctx context.Context, cp *domain.Checkpoint) error
}

// CandleStore persists OHLC price samples per (symbol, interval).
type CandleStore interface {
	// InsertBulk inserts candles, skipping any whose
	// (symbol, interval, timestamp) already exists.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, candles []*domain.Candle) (int, error)

	// GetBySymbol retrieves all candles for a symbol/interval, ordered by
	// timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string, intervalSeconds int) ([]*domain.Candle, error)

	// GetByTimeRange retrieves candles for a symbol/interval with timestamp
	// in [start, end], ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, intervalSeconds int, start, end int64) ([]*domain.Candle, error)

	// LatestTimestamp returns the newest stored timestamp for a
	// symbol/interval. Returns ErrNotFound when no candle is stored.
	LatestTimestamp(ctx context.Context, symbol string, intervalSeconds int) (int64, error)
}
