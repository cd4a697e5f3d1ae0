package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/storage"
)

// ErrPriceUnavailable is returned when no price samples exist for an asset.
var ErrPriceUnavailable = errors.New("price unavailable")

// Source resolves historical asset prices in the reference currency from the
// candle store. Series are loaded per asset on first use and cached for the
// lifetime of the source; a source is meant to live for one pipeline run.
type Source struct {
	candles         storage.CandleStore
	refCurrency     string
	intervalSeconds int

	mu    sync.Mutex
	cache map[string]*Series
}

// NewSource creates a price source reading candles at the given interval.
func NewSource(candles storage.CandleStore, refCurrency string, intervalSeconds int) *Source {
	return &Source{
		candles:         candles,
		refCurrency:     refCurrency,
		intervalSeconds: intervalSeconds,
		cache:           make(map[string]*Series),
	}
}

// Compile-time interface check.
var _ action.PriceResolver = (*Source)(nil)

// PriceAt returns the asset's price in the reference currency at ts,
// interpolating between candle closes. The reference currency and its
// stablecoin aliases price at 1.
func (s *Source) PriceAt(ctx context.Context, asset string, ts int64) (float64, error) {
	canonical := action.CanonicalAsset(asset)
	if canonical == action.CanonicalAsset(s.refCurrency) {
		return 1, nil
	}

	series, err := s.series(ctx, canonical)
	if err != nil {
		return 0, err
	}
	price, ok := series.At(ts)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
	}
	return price, nil
}

func (s *Source) series(ctx context.Context, asset string) (*Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if series, ok := s.cache[asset]; ok {
		return series, nil
	}

	symbol := asset + s.refCurrency
	candles, err := s.candles.GetBySymbol(ctx, symbol, s.intervalSeconds)
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrPriceUnavailable, symbol)
	}

	samples := make([]Sample, len(candles))
	for i, c := range candles {
		samples[i] = Sample{Timestamp: c.Timestamp, Price: c.Close}
	}
	series := NewSeries(samples)
	s.cache[asset] = series
	return series, nil
}

// SymbolFor returns the order book symbol used to price an asset against the
// source's reference currency.
func (s *Source) SymbolFor(asset string) string {
	return action.CanonicalAsset(asset) + s.refCurrency
}
