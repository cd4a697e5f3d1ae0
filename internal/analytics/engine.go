package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/pricing"
)

// positionTolerance treats residual dust below this quantity as flat.
const positionTolerance = 1e-12

// Point is one (day, value) observation of a derived series.
type Point struct {
	Day   int64 // UTC midnight, milliseconds
	Value float64
}

// Drawdown describes the maximum peak-to-trough decline of a NAV series.
type Drawdown struct {
	PeakDay     int64
	TroughDay   int64
	PeakValue   float64
	TroughValue float64
	Value       float64 // PeakValue - TroughValue
	Pct         float64 // Value / PeakValue
}

// Engine derives NAV and performance statistics from a position matrix and a
// price source. Statistics are computed independently: one failing statistic
// never aborts the others.
type Engine struct {
	prices       action.PriceResolver
	riskFreeRate float64 // annualized, e.g. 0.02
}

// NewEngine creates an analytics engine.
func NewEngine(prices action.PriceResolver, riskFreeRate float64) *Engine {
	return &Engine{prices: prices, riskFreeRate: riskFreeRate}
}

// NAVSeries values every day of the position matrix in the reference
// currency. An asset holding a position with no price data contributes zero
// and is reported through the returned error; the series itself is still
// returned so the caller can decide whether a flagged series is usable.
func (e *Engine) NAVSeries(ctx context.Context, matrix *domain.PositionMatrix) ([]Point, error) {
	if matrix == nil || len(matrix.Rows) == 0 {
		return nil, ErrInsufficientHistory
	}

	series := make([]Point, 0, len(matrix.Rows))
	unpriced := make(map[string]struct{})

	for _, row := range matrix.Rows {
		var nav float64
		for _, asset := range matrix.Assets {
			qty := row.Holdings[asset]
			if math.Abs(qty) < positionTolerance {
				continue
			}
			price, err := e.prices.PriceAt(ctx, asset, row.Day)
			if err != nil {
				unpriced[asset] = struct{}{}
				continue
			}
			nav += qty * price
		}
		series = append(series, Point{Day: row.Day, Value: nav})
	}

	if len(unpriced) > 0 {
		assets := make([]string, 0, len(unpriced))
		for a := range unpriced {
			assets = append(assets, a)
		}
		sort.Strings(assets)
		errs := make([]error, len(assets))
		for i, a := range assets {
			errs[i] = fmt.Errorf("%w: %s held but unpriced", pricing.ErrPriceUnavailable, a)
		}
		return series, errors.Join(errs...)
	}
	return series, nil
}

// YearFraction returns the series span in years, with a 365-day year.
func YearFraction(series []Point) float64 {
	if len(series) < 2 {
		return 0
	}
	days := float64(series[len(series)-1].Day-series[0].Day) / float64(domain.MsPerDay)
	return days / 365
}

// AnnualizedReturn computes (end/start)^(1/yearFraction) - 1.
func AnnualizedReturn(series []Point) (float64, error) {
	yf := YearFraction(series)
	if yf <= 0 {
		return 0, ErrInsufficientHistory
	}
	start := series[0].Value
	end := series[len(series)-1].Value
	if start <= 0 {
		return 0, fmt.Errorf("%w: non-positive starting value %v", ErrInsufficientHistory, start)
	}
	return math.Pow(end/start, 1/yf) - 1, nil
}

// AnnualizedVolatility computes the sample standard deviation of daily simple
// returns scaled by sqrt(252).
func AnnualizedVolatility(series []Point) (float64, error) {
	returns := pointReturns(series)
	if len(returns) < 2 {
		return 0, ErrInsufficientHistory
	}
	return sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear), nil
}

// DownsideVolatility computes the sample standard deviation of negative daily
// returns scaled by sqrt(252). A series with no down days has zero downside
// volatility.
func DownsideVolatility(series []Point) (float64, error) {
	returns := pointReturns(series)
	if len(returns) < 2 {
		return 0, ErrInsufficientHistory
	}
	return sampleStdDev(negatives(returns)) * math.Sqrt(tradingDaysPerYear), nil
}

// SharpeRatio computes (annualized return - risk-free rate) / volatility.
func (e *Engine) SharpeRatio(series []Point) (float64, error) {
	ret, err := AnnualizedReturn(series)
	if err != nil {
		return 0, err
	}
	vol, err := AnnualizedVolatility(series)
	if err != nil {
		return 0, err
	}
	if vol == 0 {
		return 0, ErrZeroVariance
	}
	return (ret - e.riskFreeRate) / vol, nil
}

// SortinoRatio computes (annualized return - risk-free rate) / downside
// volatility.
func (e *Engine) SortinoRatio(series []Point) (float64, error) {
	ret, err := AnnualizedReturn(series)
	if err != nil {
		return 0, err
	}
	vol, err := DownsideVolatility(series)
	if err != nil {
		return 0, err
	}
	if vol == 0 {
		return 0, ErrZeroVariance
	}
	return (ret - e.riskFreeRate) / vol, nil
}

// MaxDrawdown locates the deepest peak-to-trough decline: the trough is the
// day maximizing running-max(NAV) - NAV, the peak is the highest NAV at or
// before the trough.
func MaxDrawdown(series []Point) (Drawdown, error) {
	if len(series) < 2 {
		return Drawdown{}, ErrInsufficientHistory
	}

	var dd Drawdown
	runningMax := series[0]
	for _, p := range series {
		if p.Value > runningMax.Value {
			runningMax = p
		}
		if decline := runningMax.Value - p.Value; decline > dd.Value {
			dd = Drawdown{
				PeakDay:     runningMax.Day,
				TroughDay:   p.Day,
				PeakValue:   runningMax.Value,
				TroughValue: p.Value,
				Value:       decline,
			}
		}
	}
	if dd.PeakValue > 0 {
		dd.Pct = dd.Value / dd.PeakValue
	}
	return dd, nil
}

// RollingVolatility computes a trailing window-day rolling standard deviation
// of daily returns, annualized. Only full windows are emitted.
func RollingVolatility(series []Point, window int) []Point {
	return rolling(series, window, func(returns []float64) float64 {
		return sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear)
	})
}

// RollingReturns computes a trailing window-day rolling mean of daily
// returns, annualized. Only full windows are emitted.
func RollingReturns(series []Point, window int) []Point {
	return rolling(series, window, func(returns []float64) float64 {
		return mean(returns) * tradingDaysPerYear
	})
}

func rolling(series []Point, window int, fn func([]float64) float64) []Point {
	returns := pointReturns(series)
	if window < 1 || len(returns) < window {
		return nil
	}
	out := make([]Point, 0, len(returns)-window+1)
	for i := window - 1; i < len(returns); i++ {
		out = append(out, Point{
			Day:   series[i+1].Day, // returns[i] realizes on day i+1 of the series
			Value: fn(returns[i-window+1 : i+1]),
		})
	}
	return out
}

// Turnover computes annualized turnover: the sum over rebalancing dates
// (days where any position actually changed) of the absolute portfolio
// weight changes, divided by the year fraction.
func (e *Engine) Turnover(ctx context.Context, matrix *domain.PositionMatrix) (float64, error) {
	nav, _ := e.NAVSeries(ctx, matrix)
	if len(nav) < 2 {
		return 0, ErrInsufficientHistory
	}
	yf := YearFraction(nav)
	if yf <= 0 {
		return 0, ErrInsufficientHistory
	}

	var total float64
	for i := 1; i < len(matrix.Rows); i++ {
		prev, cur := matrix.Rows[i-1], matrix.Rows[i]
		if !positionsChanged(prev.Holdings, cur.Holdings, matrix.Assets) {
			continue
		}
		if nav[i-1].Value == 0 || nav[i].Value == 0 {
			continue
		}
		for _, asset := range matrix.Assets {
			prevW := e.weight(ctx, asset, prev.Holdings[asset], prev.Day, nav[i-1].Value)
			curW := e.weight(ctx, asset, cur.Holdings[asset], cur.Day, nav[i].Value)
			total += math.Abs(curW - prevW)
		}
	}
	return total / yf, nil
}

func (e *Engine) weight(ctx context.Context, asset string, qty float64, day int64, nav float64) float64 {
	if math.Abs(qty) < positionTolerance {
		return 0
	}
	price, err := e.prices.PriceAt(ctx, asset, day)
	if err != nil {
		return 0
	}
	return qty * price / nav
}

func positionsChanged(prev, cur map[string]float64, assets []string) bool {
	for _, asset := range assets {
		if math.Abs(cur[asset]-prev[asset]) > positionTolerance {
			return true
		}
	}
	return false
}

// TransactionCostRatio values every fee leg of the ledger in the reference
// currency, aggregates the costs by calendar year against the NAV at that
// year's start, and averages the annual ratios.
func (e *Engine) TransactionCostRatio(ctx context.Context, movements []*domain.Movement, nav []Point) (float64, error) {
	if len(nav) == 0 {
		return 0, ErrInsufficientHistory
	}

	costByYear := make(map[int]float64)
	for _, m := range movements {
		if m.Leg != domain.LegFee {
			continue
		}
		price, err := e.prices.PriceAt(ctx, m.Asset, m.Timestamp)
		if err != nil {
			continue // unpriced fee assets are excluded, not guessed
		}
		year := time.UnixMilli(m.Timestamp).UTC().Year()
		costByYear[year] += math.Abs(m.Amount) * price
	}

	startNAVByYear := make(map[int]float64)
	for _, p := range nav {
		year := time.UnixMilli(p.Day).UTC().Year()
		if _, ok := startNAVByYear[year]; !ok {
			startNAVByYear[year] = p.Value
		}
	}

	var ratios []float64
	for year, cost := range costByYear {
		start, ok := startNAVByYear[year]
		if !ok || start <= 0 {
			continue
		}
		ratios = append(ratios, cost/start)
	}
	if len(ratios) == 0 {
		return 0, ErrInsufficientHistory
	}
	return mean(ratios), nil
}

func pointReturns(series []Point) []float64 {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	return dailyReturns(values)
}
