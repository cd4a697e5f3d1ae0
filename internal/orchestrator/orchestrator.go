// Package orchestrator sequences the full pipeline: category updates,
// market-data refresh, ledger compilation and report generation.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/ledger"
	"exchange-ledger/internal/observability"
	"exchange-ledger/internal/reporting"
	"exchange-ledger/internal/storage"
)

// Orchestrator runs the pipeline phases in order. Market data refreshes
// between update and compile so newly fetched activity can be valued in the
// same run. Each phase degrades independently: a partial update still
// compiles what it fetched, and a market-data failure never blocks the
// report.
type Orchestrator struct {
	updater     *ledger.Updater
	compiler    *ledger.Compiler
	marketData  *ledger.MarketDataUpdater
	generator   *reporting.Generator
	entries     storage.EntryStore
	source      string
	refCurrency string
	epochStart  int64
	outputDir   string
	logger      zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Options contains configuration for creating an Orchestrator.
type Options struct {
	Updater     *ledger.Updater
	Compiler    *ledger.Compiler
	MarketData  *ledger.MarketDataUpdater // optional, skipped when nil
	Generator   *reporting.Generator      // optional, skipped when nil
	Entries     storage.EntryStore
	Source      string
	RefCurrency string // defaults to "USDT"
	EpochStart  int64
	OutputDir   string
	Logger      zerolog.Logger
	Metrics     *observability.Metrics // optional
	Now         func() time.Time       // defaults to time.Now
}

// New creates an orchestrator with defaults applied.
func New(opts Options) *Orchestrator {
	if opts.RefCurrency == "" {
		opts.RefCurrency = "USDT"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		updater:     opts.Updater,
		compiler:    opts.Compiler,
		marketData:  opts.MarketData,
		generator:   opts.Generator,
		entries:     opts.Entries,
		source:      opts.Source,
		refCurrency: opts.RefCurrency,
		epochStart:  opts.EpochStart,
		outputDir:   opts.OutputDir,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
}

// RunResult aggregates the outcome of one pipeline run.
type RunResult struct {
	StartedAt  time.Time
	Duration   time.Duration
	Categories []ledger.CategoryResult
	MarketData *ledger.MarketDataResult
	Compile    *ledger.CompileResult
	Report     *reporting.Report
	Errors     []string
}

// Run executes a full pipeline pass ending at the orchestrator's clock.
func (o *Orchestrator) Run(ctx context.Context) *RunResult {
	started := o.now()
	nowMs := started.UnixMilli()
	result := &RunResult{StartedAt: started}

	o.phase("update", func() error {
		result.Categories = o.updater.UpdateAll(ctx, nowMs)
		failed := 0
		for _, cr := range result.Categories {
			failed += cr.WindowsFailed
			for _, e := range cr.Errors {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s: %s", cr.Category, e))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d windows failed", failed)
		}
		return nil
	})

	if o.marketData != nil {
		o.phase("marketdata", func() error {
			symbols, err := o.priceSymbols(ctx, nowMs)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("market data: %v", err))
				return err
			}
			md := o.marketData.UpdateSymbols(ctx, symbols, nowMs)
			result.MarketData = md
			for _, e := range md.Errors {
				result.Errors = append(result.Errors, fmt.Sprintf("market data: %s", e))
			}
			if len(md.Errors) > 0 {
				return fmt.Errorf("%d symbols failed", len(md.Errors))
			}
			return nil
		})
	}

	o.phase("compile", func() error {
		compile, err := o.compiler.Compile(ctx, nowMs)
		result.Compile = compile
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("compile: %v", err))
		}
		return err
	})

	if o.generator != nil {
		o.phase("report", func() error {
			report, err := o.generator.Generate(ctx)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("report: %v", err))
				return err
			}
			result.Report = report
			if o.metrics != nil {
				o.metrics.NegativeBalanceWarnings.Add(float64(len(report.BalanceWarnings)))
			}
			if o.outputDir == "" {
				return nil
			}
			if err := o.generator.WriteFiles(report, o.outputDir); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("report: %v", err))
				return err
			}
			return nil
		})
	}

	result.Duration = o.now().Sub(started)
	o.logger.Info().
		Dur("duration", result.Duration).
		Int("errors", len(result.Errors)).
		Msg("pipeline run complete")
	return result
}

// phase times a pipeline stage and records its outcome. Phase errors are
// already collected into the run result by the stage itself; the return value
// only drives metrics and logging.
func (o *Orchestrator) phase(name string, fn func() error) {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		o.logger.Warn().Err(err).Str("phase", name).Msg("pipeline phase degraded")
	} else {
		o.logger.Info().Str("phase", name).Dur("elapsed", elapsed).Msg("pipeline phase complete")
	}
	if o.metrics != nil {
		o.metrics.RunsTotal.WithLabelValues(name, status).Inc()
		o.metrics.RunDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// priceSymbols derives the candle symbols backing ledger valuations: one
// reference-currency pair per distinct asset the entry history touches,
// including counter and fee assets.
func (o *Orchestrator) priceSymbols(ctx context.Context, nowMs int64) ([]string, error) {
	ref := action.CanonicalAsset(o.refCurrency)
	seen := make(map[string]struct{})
	add := func(asset string) {
		if asset == "" {
			return
		}
		canonical := action.CanonicalAsset(asset)
		if canonical == ref {
			return
		}
		seen[canonical] = struct{}{}
	}

	for _, category := range domain.ProviderCategories() {
		entries, err := o.entries.ReadRange(ctx, o.source, category, o.epochStart, nowMs)
		if err != nil {
			return nil, fmt.Errorf("read %s entries: %w", category, err)
		}
		for _, e := range entries {
			add(e.Asset)
			add(e.CounterAsset)
			add(e.FeeAsset)
		}
	}

	symbols := make([]string, 0, len(seen))
	for asset := range seen {
		symbols = append(symbols, asset+o.refCurrency)
	}
	sort.Strings(symbols)
	return symbols, nil
}
