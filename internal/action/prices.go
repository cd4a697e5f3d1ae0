package action

import (
	"context"
	"errors"
	"fmt"

	"exchange-ledger/internal/domain"
)

// PriceResolver looks up an asset's price in the reference currency at a
// point in time.
type PriceResolver interface {
	PriceAt(ctx context.Context, asset string, ts int64) (float64, error)
}

// BackfillPrices fills the reference-currency valuation fields of expanded
// entries in place: FeeAssetPrice for entries carrying a fee asset and
// CounterPrice for trade/conversion counter assets. The reference currency
// itself and its stablecoin aliases resolve to 1 without a lookup.
//
// Lookups that fail do not abort the batch: the affected field stays zero and
// all failures come back joined into one error.
func BackfillPrices(ctx context.Context, resolver PriceResolver, refCurrency string, entries []*domain.Entry) error {
	var errs []error
	for _, e := range entries {
		if e.FeeAsset != "" && e.FeeAssetPrice == 0 {
			price, err := resolvePrice(ctx, resolver, refCurrency, e.FeeAsset, e.Timestamp)
			if err != nil {
				errs = append(errs, fmt.Errorf("fee asset %s at %d: %w", e.FeeAsset, e.Timestamp, err))
			} else {
				e.FeeAssetPrice = price
			}
		}
		if e.CounterAsset != "" && e.CounterPrice == 0 {
			price, err := resolvePrice(ctx, resolver, refCurrency, e.CounterAsset, e.Timestamp)
			if err != nil {
				errs = append(errs, fmt.Errorf("counter asset %s at %d: %w", e.CounterAsset, e.Timestamp, err))
			} else {
				e.CounterPrice = price
			}
		}
	}
	return errors.Join(errs...)
}

func resolvePrice(ctx context.Context, resolver PriceResolver, refCurrency, asset string, ts int64) (float64, error) {
	if CanonicalAsset(asset) == CanonicalAsset(refCurrency) {
		return 1, nil
	}
	return resolver.PriceAt(ctx, asset, ts)
}
