package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/observability"
	"exchange-ledger/internal/provider"
	"exchange-ledger/internal/storage"
)

// MarketDataUpdater keeps the candle store current: each symbol resumes from
// its newest stored candle, so repeated runs are incremental and idempotent.
type MarketDataUpdater struct {
	source          provider.CandleSource
	store           storage.CandleStore
	intervalSeconds int
	epochStart      int64
	logger          zerolog.Logger
	metrics         *observability.Metrics
}

// MarketDataOptions contains configuration for creating a MarketDataUpdater.
type MarketDataOptions struct {
	Source          provider.CandleSource
	Store           storage.CandleStore
	IntervalSeconds int // defaults to hourly
	EpochStart      int64
	Logger          zerolog.Logger
	Metrics         *observability.Metrics // optional
}

// NewMarketDataUpdater creates a market-data updater with defaults applied.
func NewMarketDataUpdater(opts MarketDataOptions) *MarketDataUpdater {
	if opts.IntervalSeconds <= 0 {
		opts.IntervalSeconds = domain.CandleInterval1Hour
	}
	return &MarketDataUpdater{
		source:          opts.Source,
		store:           opts.Store,
		intervalSeconds: opts.IntervalSeconds,
		epochStart:      opts.EpochStart,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}
}

// MarketDataResult contains statistics from one market-data run.
type MarketDataResult struct {
	SymbolsUpdated  int
	CandlesFetched  int
	CandlesInserted int
	Errors          []string
}

// UpdateSymbols refreshes candles for every symbol. Symbols fail
// independently.
func (m *MarketDataUpdater) UpdateSymbols(ctx context.Context, symbols []string, now int64) *MarketDataResult {
	result := &MarketDataResult{}
	for _, symbol := range symbols {
		fetched, inserted, err := m.UpdateSymbol(ctx, symbol, now)
		result.CandlesFetched += fetched
		result.CandlesInserted += inserted
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
			m.logger.Warn().Err(err).Str("symbol", symbol).Msg("market data update failed")
			continue
		}
		result.SymbolsUpdated++
	}
	return result
}

// UpdateSymbol fetches candles from the symbol's newest stored timestamp
// forward and inserts them, skipping duplicates.
func (m *MarketDataUpdater) UpdateSymbol(ctx context.Context, symbol string, now int64) (fetched, inserted int, err error) {
	from := m.epochStart
	latest, err := m.store.LatestTimestamp(ctx, symbol, m.intervalSeconds)
	switch {
	case err == nil:
		// Resume one interval past the stored candle.
		from = latest + int64(m.intervalSeconds)*1000
	case errors.Is(err, storage.ErrNotFound):
	default:
		return 0, 0, fmt.Errorf("latest timestamp: %w", err)
	}
	if from >= now {
		return 0, 0, nil
	}

	candles, err := m.source.FetchCandles(ctx, symbol, m.intervalSeconds, from, now)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return 0, 0, nil
	}

	inserted, err = m.store.InsertBulk(ctx, candles)
	if err != nil {
		return len(candles), inserted, fmt.Errorf("insert candles: %w", err)
	}
	if m.metrics != nil {
		m.metrics.CandlesInserted.WithLabelValues(symbol).Add(float64(inserted))
	}
	m.logger.Debug().
		Str("symbol", symbol).
		Int("fetched", len(candles)).
		Int("inserted", inserted).
		Msg("symbol candles updated")
	return len(candles), inserted, nil
}
