package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

func testCandle(symbol string, ts int64, close float64) *domain.Candle {
	return &domain.Candle{
		Symbol:          symbol,
		IntervalSeconds: domain.CandleInterval1Hour,
		Timestamp:       ts,
		Open:            close - 10,
		High:            close + 20,
		Low:             close - 20,
		Close:           close,
		Volume:          100,
	}
}

func TestCandleStore_InsertAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewCandleStore(conn)
	ctx := context.Background()

	inserted, err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTCUSDT", 3600000, 40000),
		testCandle("BTCUSDT", 7200000, 40100),
		testCandle("ETHUSDT", 3600000, 2500),
	})
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	got, err := store.GetBySymbol(ctx, "BTCUSDT", domain.CandleInterval1Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(3600000), got[0].Timestamp)
	require.Equal(t, 40000.0, got[0].Close)
}

func TestCandleStore_InsertBulkSkipsDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewCandleStore(conn)
	ctx := context.Background()

	first, err := store.InsertBulk(ctx, []*domain.Candle{testCandle("BTCUSDT", 3600000, 40000)})
	require.NoError(t, err)
	require.Equal(t, 1, first)

	// Replay plus one new row: only the new row counts.
	second, err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTCUSDT", 3600000, 40000),
		testCandle("BTCUSDT", 7200000, 40100),
	})
	require.NoError(t, err)
	require.Equal(t, 1, second)

	got, err := store.GetBySymbol(ctx, "BTCUSDT", domain.CandleInterval1Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestCandleStore_GetByTimeRangeInclusive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewCandleStore(conn)
	ctx := context.Background()

	_, err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTCUSDT", 3600000, 40000),
		testCandle("BTCUSDT", 7200000, 40100),
		testCandle("BTCUSDT", 10800000, 40200),
	})
	require.NoError(t, err)

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", domain.CandleInterval1Hour, 3600000, 7200000)
	require.NoError(t, err)
	require.Len(t, got, 2, "range is inclusive on both ends")
}

func TestCandleStore_LatestTimestamp(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewCandleStore(conn)
	ctx := context.Background()

	_, err := store.LatestTimestamp(ctx, "BTCUSDT", domain.CandleInterval1Hour)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTCUSDT", 3600000, 40000),
		testCandle("BTCUSDT", 7200000, 40100),
	})
	require.NoError(t, err)

	latest, err := store.LatestTimestamp(ctx, "BTCUSDT", domain.CandleInterval1Hour)
	require.NoError(t, err)
	require.Equal(t, int64(7200000), latest)
}

func TestCandleStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewCandleStore(conn)
	ctx := context.Background()

	_, err := store.InsertBulk(ctx, []*domain.Candle{{Symbol: "", IntervalSeconds: 3600}})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
