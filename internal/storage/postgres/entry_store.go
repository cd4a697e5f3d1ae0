package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// EntryStore implements storage.EntryStore using PostgreSQL.
type EntryStore struct {
	pool *Pool
}

// NewEntryStore creates a new EntryStore.
func NewEntryStore(pool *Pool) *EntryStore {
	return &EntryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntryStore = (*EntryStore)(nil)

const entryColumns = `
	source, category, source_id, leg, asset, amount, ts, description,
	symbol, price, counter_asset, counter_price, side,
	fee_asset, fee_amount, fee_asset_price,
	network, address, status, transfered_amount, transfered_asset
`

const insertEntryQuery = `
	INSERT INTO entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	ON CONFLICT (source, category, source_id, leg, asset) DO NOTHING
`

// Append inserts entries, skipping any whose dedup key already exists.
// Returns the number of rows actually inserted.
func (s *EntryStore) Append(ctx context.Context, entries []*domain.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, e := range entries {
		if e == nil {
			return inserted, storage.ErrInvalidInput
		}
		tag, err := tx.Exec(ctx, insertEntryQuery, entryArgs(e)...)
		if err != nil {
			return inserted, fmt.Errorf("insert entry: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return inserted, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// Overwrite destructively replaces the (source, category) store with the
// given entries. Used by full-rebuild updates.
func (s *EntryStore) Overwrite(ctx context.Context, source string, category domain.Category, entries []*domain.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE source = $1 AND category = $2`, source, string(category)); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	for _, e := range entries {
		if e == nil {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertEntryQuery, entryArgs(e)...); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReadRange retrieves entries for a source/category with timestamp in
// [start, end), ordered by timestamp ASC.
func (s *EntryStore) ReadRange(ctx context.Context, source string, category domain.Category, start, end int64) ([]*domain.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE source = $1 AND category = $2 AND ts >= $3 AND ts < $4
		ORDER BY ts ASC, source_id ASC, leg ASC, asset ASC
	`

	rows, err := s.pool.Query(ctx, query, source, string(category), start, end)
	if err != nil {
		return nil, fmt.Errorf("read entries by range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func entryArgs(e *domain.Entry) []any {
	return []any{
		e.Source, string(e.Category), e.SourceID, string(e.Leg), e.Asset,
		e.Amount, e.Timestamp, e.Description,
		e.Symbol, e.Price, e.CounterAsset, e.CounterPrice, e.Side,
		e.FeeAsset, e.FeeAmount, e.FeeAssetPrice,
		e.Network, e.Address, e.Status, e.TransferedAmount, e.TransferedAsset,
	}
}

// scanEntries scans multiple rows into a slice of Entry.
func scanEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry

	for rows.Next() {
		var e domain.Entry
		var category, leg string

		err := rows.Scan(
			&e.Source, &category, &e.SourceID, &leg, &e.Asset,
			&e.Amount, &e.Timestamp, &e.Description,
			&e.Symbol, &e.Price, &e.CounterAsset, &e.CounterPrice, &e.Side,
			&e.FeeAsset, &e.FeeAmount, &e.FeeAssetPrice,
			&e.Network, &e.Address, &e.Status, &e.TransferedAmount, &e.TransferedAsset,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		e.Category = domain.Category(category)
		e.Leg = domain.Leg(leg)

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}

	return entries, nil
}
