// Package portfolio values the account's live balances.
package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/pricefeed"
	"exchange-ledger/internal/provider"
)

// dustThreshold hides residual balances too small to value.
const dustThreshold = 1e-9

// Position is one valued holding within a snapshot.
type Position struct {
	Asset    string
	Quantity float64
	Price    float64 // in the reference currency
	Value    float64
	Weight   float64 // fraction of NAV
}

// Snapshot is the account's live balances valued in the reference currency.
// Unpriced lists assets held but unviable to value; their contribution to
// NAV is zero and the caller decides whether the snapshot is usable.
type Snapshot struct {
	Timestamp   int64
	RefCurrency string
	NAV         float64
	Positions   []Position
	Unpriced    []string
}

// Snapshotter builds live portfolio snapshots. Spot prices come from the
// ticker feed when available and fall back to the newest stored candle.
type Snapshotter struct {
	provider    provider.Provider
	history     action.PriceResolver
	feed        *pricefeed.Client // optional
	refCurrency string
}

// NewSnapshotter creates a snapshotter. feed may be nil, in which case every
// price resolves through the historical resolver.
func NewSnapshotter(p provider.Provider, history action.PriceResolver, feed *pricefeed.Client, refCurrency string) *Snapshotter {
	if refCurrency == "" {
		refCurrency = "USDT"
	}
	return &Snapshotter{provider: p, history: history, feed: feed, refCurrency: refCurrency}
}

// Snapshot values the account's current balances.
func (s *Snapshotter) Snapshot(ctx context.Context) (*Snapshot, error) {
	holdings, err := s.provider.CurrentHoldings(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	snap := &Snapshot{Timestamp: now, RefCurrency: s.refCurrency}
	assets := make([]string, 0, len(holdings))
	for asset := range holdings {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		qty := holdings[asset]
		if math.Abs(qty) < dustThreshold {
			continue
		}
		price, ok := s.spotPrice(ctx, asset, now)
		if !ok {
			snap.Unpriced = append(snap.Unpriced, asset)
			continue
		}
		snap.Positions = append(snap.Positions, Position{
			Asset:    asset,
			Quantity: qty,
			Price:    price,
			Value:    qty * price,
		})
		snap.NAV += qty * price
	}

	if snap.NAV != 0 {
		for i := range snap.Positions {
			snap.Positions[i].Weight = snap.Positions[i].Value / snap.NAV
		}
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		if snap.Positions[i].Value != snap.Positions[j].Value {
			return snap.Positions[i].Value > snap.Positions[j].Value
		}
		return snap.Positions[i].Asset < snap.Positions[j].Asset
	})
	return snap, nil
}

// spotPrice tries the live feed first, then the historical resolver.
func (s *Snapshotter) spotPrice(ctx context.Context, asset string, now int64) (float64, bool) {
	canonical := action.CanonicalAsset(asset)
	if canonical == action.CanonicalAsset(s.refCurrency) {
		return 1, true
	}
	if s.feed != nil {
		if price, _, ok := s.feed.Price(canonical + s.refCurrency); ok {
			return price, true
		}
	}
	if s.history != nil {
		if price, err := s.history.PriceAt(ctx, asset, now); err == nil {
			return price, true
		}
	}
	return 0, false
}
