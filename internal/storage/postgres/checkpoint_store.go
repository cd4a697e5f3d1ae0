package postgres

import (
	"context"
	"fmt"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Get returns the checkpoint for a source/category.
// Returns ErrNotFound if no update has ever completed.
func (s *CheckpointStore) Get(ctx context.Context, source string, category domain.Category) (*domain.Checkpoint, error) {
	if source == "" || category == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT source, category, last_update, known_assets
		FROM checkpoints
		WHERE source = $1 AND category = $2
	`, source, string(category))

	var cp domain.Checkpoint
	var cat string
	if err := row.Scan(&cp.Source, &cat, &cp.LastUpdate, &cp.KnownAssets); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	cp.Category = domain.Category(cat)
	return &cp, nil
}

// Put upserts a checkpoint.
func (s *CheckpointStore) Put(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.Source == "" || cp.Category == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (source, category, last_update, known_assets, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (source, category) DO UPDATE
		SET last_update = EXCLUDED.last_update,
		    known_assets = EXCLUDED.known_assets,
		    updated_at = NOW()
	`, cp.Source, string(cp.Category), cp.LastUpdate, cp.KnownAssets)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}
