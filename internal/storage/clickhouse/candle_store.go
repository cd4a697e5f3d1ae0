package clickhouse

import (
	"context"
	"fmt"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk inserts candles, skipping any whose (symbol, interval,
// timestamp) already exists. Returns the number of rows actually inserted.
// MergeTree enforces no uniqueness at insert time, so existing keys are
// filtered out with an explicit lookup before the batch goes out.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	type key struct {
		symbol          string
		intervalSeconds int
		timestamp       int64
	}
	seen := make(map[key]struct{}, len(candles))
	fresh := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.IntervalSeconds <= 0 {
			return 0, storage.ErrInvalidInput
		}
		k := key{c.Symbol, c.IntervalSeconds, c.Timestamp}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		exists, err := s.exists(ctx, c.Symbol, c.IntervalSeconds, c.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("check exists: %w", err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval_seconds, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range fresh {
		err = batch.Append(
			c.Symbol, uint32(c.IntervalSeconds), uint64(c.Timestamp),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return len(fresh), nil
}

// GetBySymbol retrieves all candles for a symbol/interval, ordered by
// timestamp ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string, intervalSeconds int) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, interval_seconds, timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval_seconds = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint32(intervalSeconds))
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles for a symbol/interval with timestamp in
// [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, intervalSeconds int, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, interval_seconds, timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval_seconds = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint32(intervalSeconds), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// LatestTimestamp returns the newest stored timestamp for a symbol/interval.
// Returns ErrNotFound when no candle is stored.
func (s *CandleStore) LatestTimestamp(ctx context.Context, symbol string, intervalSeconds int) (int64, error) {
	query := `
		SELECT max(timestamp_ms), count(*)
		FROM candles
		WHERE symbol = ? AND interval_seconds = ?
	`

	var latest, count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint32(intervalSeconds)).Scan(&latest, &count)
	if err != nil {
		return 0, fmt.Errorf("query latest timestamp: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return int64(latest), nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, intervalSeconds int, timestamp int64) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND interval_seconds = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint32(intervalSeconds), uint64(timestamp)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows abstracts driver.Rows for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var intervalSeconds uint32
		var timestamp uint64

		err := rows.Scan(
			&c.Symbol, &intervalSeconds, &timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.IntervalSeconds = int(intervalSeconds)
		c.Timestamp = int64(timestamp)

		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
