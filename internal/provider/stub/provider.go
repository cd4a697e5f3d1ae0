// Package stub provides a fixture-backed provider for tests and dry runs.
package stub

import (
	"context"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/provider"
)

// Provider serves fixed in-memory records shaped like the live provider's
// API responses. Implements provider.Provider.
//
// FetchErr, when set, is consulted before every range fetch so tests can
// inject per-category, per-window failures. TradesErr does the same per
// asset for the symbol-scoped trade endpoint.
type Provider struct {
	code     string
	records  map[domain.Category][]action.Record
	holdings map[string]float64
	delisted map[string]bool

	FetchErr  func(category domain.Category, from, to int64) error
	TradesErr func(asset string, from, to int64) error
}

// New creates a stub provider serving the given records per category.
func New(code string, records map[domain.Category][]action.Record) *Provider {
	return &Provider{
		code:     code,
		records:  records,
		holdings: make(map[string]float64),
		delisted: make(map[string]bool),
	}
}

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)

// Code returns the stub's data-source code.
func (p *Provider) Code() string { return p.code }

// SetHoldings fixes the balances CurrentHoldings reports.
func (p *Provider) SetHoldings(holdings map[string]float64) {
	p.holdings = holdings
}

// Delist marks a symbol as having no active order book.
func (p *Provider) Delist(symbol string) {
	p.delisted[symbol] = true
}

// Add appends records to a category fixture.
func (p *Provider) Add(category domain.Category, records ...action.Record) {
	if p.records == nil {
		p.records = make(map[domain.Category][]action.Record)
	}
	p.records[category] = append(p.records[category], records...)
}

// FetchTrades returns the trade fixtures for one asset within [from, to).
// The asset filter matches the symbol prefix, mirroring the live endpoint's
// symbol scoping.
func (p *Provider) FetchTrades(_ context.Context, asset string, from, to int64) ([]action.Record, error) {
	if p.TradesErr != nil {
		if err := p.TradesErr(asset, from, to); err != nil {
			return nil, err
		}
	}
	if err := p.fetchErr(domain.CategoryTrade, from, to); err != nil {
		return nil, err
	}
	var result []action.Record
	for _, rec := range p.records[domain.CategoryTrade] {
		symbol, _ := rec.Str("symbol")
		if len(symbol) <= len(asset) || symbol[:len(asset)] != asset {
			continue
		}
		if inWindow(rec, "time", from, to) {
			result = append(result, copyRecord(rec))
		}
	}
	return result, nil
}

func (p *Provider) FetchDeposits(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryDeposit, "insertTime", from, to)
}

func (p *Provider) FetchWithdrawals(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryWithdrawal, "applyTime", from, to)
}

func (p *Provider) FetchFiatMovements(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryFiat, "createTime", from, to)
}

func (p *Provider) FetchDustLog(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryDustSweep, "operateTime", from, to)
}

func (p *Provider) FetchDividends(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryDividend, "divTime", from, to)
}

func (p *Provider) FetchConversions(_ context.Context, from, to int64) ([]action.Record, error) {
	return p.rangeFetch(domain.CategoryConversion, "createTime", from, to)
}

// IsTradable reports false for delisted symbols.
func (p *Provider) IsTradable(_ context.Context, symbol string) (bool, error) {
	return !p.delisted[symbol], nil
}

// CurrentHoldings returns a copy of the fixed balances.
func (p *Provider) CurrentHoldings(_ context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(p.holdings))
	for k, v := range p.holdings {
		out[k] = v
	}
	return out, nil
}

func (p *Provider) rangeFetch(category domain.Category, timeField string, from, to int64) ([]action.Record, error) {
	if err := p.fetchErr(category, from, to); err != nil {
		return nil, err
	}
	var result []action.Record
	for _, rec := range p.records[category] {
		if inWindow(rec, timeField, from, to) {
			result = append(result, copyRecord(rec))
		}
	}
	return result, nil
}

func (p *Provider) fetchErr(category domain.Category, from, to int64) error {
	if p.FetchErr == nil {
		return nil
	}
	return p.FetchErr(category, from, to)
}

func inWindow(rec action.Record, timeField string, from, to int64) bool {
	ts, err := rec.TimeMs(timeField)
	if err != nil {
		return true // malformed fixtures flow through so builders can reject them
	}
	return ts >= from && ts < to
}

func copyRecord(rec action.Record) action.Record {
	out := make(action.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// CandleSource serves fixed candles. Implements provider.CandleSource.
type CandleSource struct {
	candles []*domain.Candle
}

// NewCandleSource creates a stub candle source.
func NewCandleSource(candles []*domain.Candle) *CandleSource {
	return &CandleSource{candles: candles}
}

var _ provider.CandleSource = (*CandleSource)(nil)

// FetchCandles returns candles for the symbol/interval within [from, to).
func (c *CandleSource) FetchCandles(_ context.Context, symbol string, intervalSeconds int, from, to int64) ([]*domain.Candle, error) {
	var result []*domain.Candle
	for _, candle := range c.candles {
		if candle.Symbol != symbol || candle.IntervalSeconds != intervalSeconds {
			continue
		}
		if candle.Timestamp >= from && candle.Timestamp < to {
			cp := *candle
			result = append(result, &cp)
		}
	}
	return result, nil
}
