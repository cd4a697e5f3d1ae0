// Package provider abstracts the exchange API surface the pipeline consumes.
// Rate limiting, pagination and authentication live behind these interfaces.
package provider

import (
	"context"
	"fmt"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
)

// Provider fetches raw account-activity records for one exchange account.
// All ranges are half-open [from, to) in Unix milliseconds. Records come
// back untyped; the action package owns their interpretation.
type Provider interface {
	// Code returns the stable data-source code, e.g. "e0001".
	Code() string

	// FetchTrades returns the account's fills for one asset. Trades are the
	// only per-asset fetch: the provider's trade endpoint is symbol-scoped.
	FetchTrades(ctx context.Context, asset string, from, to int64) ([]action.Record, error)

	FetchDeposits(ctx context.Context, from, to int64) ([]action.Record, error)
	FetchWithdrawals(ctx context.Context, from, to int64) ([]action.Record, error)
	FetchFiatMovements(ctx context.Context, from, to int64) ([]action.Record, error)
	FetchDustLog(ctx context.Context, from, to int64) ([]action.Record, error)
	FetchDividends(ctx context.Context, from, to int64) ([]action.Record, error)
	FetchConversions(ctx context.Context, from, to int64) ([]action.Record, error)

	// IsTradable reports whether the symbol currently has an active order
	// book. Delisted symbols are skipped by trade updates instead of failing
	// the whole window.
	IsTradable(ctx context.Context, symbol string) (bool, error)

	// CurrentHoldings returns the account's live balances by asset.
	CurrentHoldings(ctx context.Context) (map[string]float64, error)
}

// CandleSource fetches historical OHLC data for the market-data updater.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, intervalSeconds int, from, to int64) ([]*domain.Candle, error)
}

// FetchCategory dispatches a range fetch for one non-trade category. Trades
// are asset-scoped and go through FetchTrades directly.
func FetchCategory(ctx context.Context, p Provider, category domain.Category, from, to int64) ([]action.Record, error) {
	switch category {
	case domain.CategoryDeposit:
		return p.FetchDeposits(ctx, from, to)
	case domain.CategoryWithdrawal:
		return p.FetchWithdrawals(ctx, from, to)
	case domain.CategoryFiat:
		return p.FetchFiatMovements(ctx, from, to)
	case domain.CategoryDustSweep:
		return p.FetchDustLog(ctx, from, to)
	case domain.CategoryDividend:
		return p.FetchDividends(ctx, from, to)
	case domain.CategoryConversion:
		return p.FetchConversions(ctx, from, to)
	default:
		return nil, fmt.Errorf("category %q has no range fetch", category)
	}
}
