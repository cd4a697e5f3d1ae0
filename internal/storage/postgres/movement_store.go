package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// MovementStore implements storage.MovementStore using PostgreSQL.
type MovementStore struct {
	pool *Pool
}

// NewMovementStore creates a new MovementStore.
func NewMovementStore(pool *Pool) *MovementStore {
	return &MovementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MovementStore = (*MovementStore)(nil)

const insertMovementQuery = `
	INSERT INTO movements (source, category, source_id, leg, asset, amount, ts, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (source, category, source_id, leg, asset) DO NOTHING
`

// Append inserts movements, skipping duplicates by key.
// Returns the number of rows actually inserted.
func (s *MovementStore) Append(ctx context.Context, movements []*domain.Movement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, m := range movements {
		if m == nil {
			return inserted, storage.ErrInvalidInput
		}
		tag, err := tx.Exec(ctx, insertMovementQuery, movementArgs(m)...)
		if err != nil {
			return inserted, fmt.Errorf("insert movement: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return inserted, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// Overwrite destructively replaces the whole ledger.
func (s *MovementStore) Overwrite(ctx context.Context, movements []*domain.Movement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM movements`); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	for _, m := range movements {
		if m == nil {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertMovementQuery, movementArgs(m)...); err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReadRange retrieves movements with timestamp in [start, end), ordered by
// timestamp ASC.
func (s *MovementStore) ReadRange(ctx context.Context, start, end int64) ([]*domain.Movement, error) {
	query := `
		SELECT source, category, source_id, leg, asset, amount, ts, description
		FROM movements
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC, source_id ASC, leg ASC, asset ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("read movements by range: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// ReadAll retrieves the full ledger ordered by timestamp ASC.
func (s *MovementStore) ReadAll(ctx context.Context) ([]*domain.Movement, error) {
	query := `
		SELECT source, category, source_id, leg, asset, amount, ts, description
		FROM movements
		ORDER BY ts ASC, source_id ASC, leg ASC, asset ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read all movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func movementArgs(m *domain.Movement) []any {
	return []any{
		m.Source, string(m.Category), m.SourceID, string(m.Leg), m.Asset,
		m.Amount, m.Timestamp, m.Description,
	}
}

// scanMovements scans multiple rows into a slice of Movement.
func scanMovements(rows pgx.Rows) ([]*domain.Movement, error) {
	var movements []*domain.Movement

	for rows.Next() {
		var m domain.Movement
		var category, leg string

		err := rows.Scan(
			&m.Source, &category, &m.SourceID, &leg, &m.Asset,
			&m.Amount, &m.Timestamp, &m.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("scan movement row: %w", err)
		}
		m.Category = domain.Category(category)
		m.Leg = domain.Leg(leg)

		movements = append(movements, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement rows: %w", err)
	}

	return movements, nil
}
