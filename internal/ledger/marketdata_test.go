package ledger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/provider/stub"
	"exchange-ledger/internal/storage/memory"
)

const hourMs = int64(domain.CandleInterval1Hour) * 1000

func hourlyCandle(symbol string, ts int64, close float64) *domain.Candle {
	return &domain.Candle{
		Symbol:          symbol,
		IntervalSeconds: domain.CandleInterval1Hour,
		Timestamp:       ts,
		Open:            close,
		High:            close,
		Low:             close,
		Close:           close,
		Volume:          1,
	}
}

func TestMarketData_IncrementalResume(t *testing.T) {
	store := memory.NewCandleStore()
	source := stub.NewCandleSource([]*domain.Candle{
		hourlyCandle("BTCUSDT", 0, 100),
		hourlyCandle("BTCUSDT", hourMs, 101),
		hourlyCandle("BTCUSDT", 2*hourMs, 102),
	})
	updater := NewMarketDataUpdater(MarketDataOptions{
		Source: source,
		Store:  store,
		Logger: zerolog.Nop(),
	})
	ctx := context.Background()

	fetched, inserted, err := updater.UpdateSymbol(ctx, "BTCUSDT", 2*hourMs)
	if err != nil {
		t.Fatalf("UpdateSymbol failed: %v", err)
	}
	if fetched != 2 || inserted != 2 {
		t.Errorf("first run fetched/inserted = %d/%d, want 2/2", fetched, inserted)
	}

	// Second run resumes past the newest stored candle.
	fetched, inserted, err = updater.UpdateSymbol(ctx, "BTCUSDT", 3*hourMs)
	if err != nil {
		t.Fatalf("second UpdateSymbol failed: %v", err)
	}
	if fetched != 1 || inserted != 1 {
		t.Errorf("resume fetched/inserted = %d/%d, want 1/1", fetched, inserted)
	}

	all, err := store.GetBySymbol(ctx, "BTCUSDT", domain.CandleInterval1Hour)
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 stored candles, got %d", len(all))
	}
}

func TestMarketData_SymbolsFailIndependently(t *testing.T) {
	store := memory.NewCandleStore()
	source := stub.NewCandleSource([]*domain.Candle{
		hourlyCandle("BTCUSDT", 0, 100),
	})
	updater := NewMarketDataUpdater(MarketDataOptions{
		Source: source,
		Store:  store,
		Logger: zerolog.Nop(),
	})

	result := updater.UpdateSymbols(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, hourMs)
	// ETHUSDT has no candles upstream: not an error, just nothing inserted.
	if result.SymbolsUpdated != 2 {
		t.Errorf("expected both symbols processed, got %d", result.SymbolsUpdated)
	}
	if result.CandlesInserted != 1 {
		t.Errorf("expected 1 candle inserted, got %d", result.CandlesInserted)
	}
}
