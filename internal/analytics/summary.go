package analytics

import (
	"context"
	"fmt"

	"exchange-ledger/internal/domain"
)

// Summary is a complete performance report over one NAV series. Statistics
// that could not be computed stay zero and are listed in Errors; a summary
// with a non-empty Errors slice is a partial result, never presented as
// complete by the renderers.
type Summary struct {
	Start int64 // first NAV day, UTC midnight ms
	End   int64 // last NAV day, UTC midnight ms

	NAVStart float64
	NAVEnd   float64

	AnnualizedReturn     float64
	AnnualizedVolatility float64
	DownsideVolatility   float64
	Sharpe               float64
	Sortino              float64
	MaxDrawdown          Drawdown
	AnnualizedTurnover   float64
	TransactionCostRatio float64

	Warnings []string
	Errors   []string
}

// Summarize computes the full statistics suite over a position matrix and
// its ledger. Each statistic fails independently: errors are contained in
// the summary rather than aborting the batch.
func (e *Engine) Summarize(ctx context.Context, matrix *domain.PositionMatrix, movements []*domain.Movement) (*Summary, error) {
	nav, navErr := e.NAVSeries(ctx, matrix)
	if len(nav) == 0 {
		return nil, ErrInsufficientHistory
	}

	s := &Summary{
		Start:    nav[0].Day,
		End:      nav[len(nav)-1].Day,
		NAVStart: nav[0].Value,
		NAVEnd:   nav[len(nav)-1].Value,
	}
	if navErr != nil {
		s.Warnings = append(s.Warnings, navErr.Error())
	}

	record := func(name string, err error) {
		if err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	var err error
	s.AnnualizedReturn, err = AnnualizedReturn(nav)
	record("annualized return", err)
	s.AnnualizedVolatility, err = AnnualizedVolatility(nav)
	record("annualized volatility", err)
	s.DownsideVolatility, err = DownsideVolatility(nav)
	record("downside volatility", err)
	s.Sharpe, err = e.SharpeRatio(nav)
	record("sharpe ratio", err)
	s.Sortino, err = e.SortinoRatio(nav)
	record("sortino ratio", err)
	s.MaxDrawdown, err = MaxDrawdown(nav)
	record("max drawdown", err)
	s.AnnualizedTurnover, err = e.Turnover(ctx, matrix)
	record("turnover", err)
	s.TransactionCostRatio, err = e.TransactionCostRatio(ctx, movements, nav)
	record("transaction cost ratio", err)

	return s, nil
}
