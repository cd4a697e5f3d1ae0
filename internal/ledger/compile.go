package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/observability"
	"exchange-ledger/internal/storage"
)

// Compiler turns per-category entries into the canonical movement ledger:
// it reads every category's new entries, synthesizes derived legs exactly
// once, backfills reference-currency valuations and appends the base
// projections. Its own checkpoint trails the per-category checkpoints: the
// compile window end is the minimum of what every category has fetched, so
// the ledger never runs ahead of its slowest input.
type Compiler struct {
	source      string
	entries     storage.EntryStore
	movements   storage.MovementStore
	checkpoints storage.CheckpointStore
	prices      action.PriceResolver
	refCurrency string
	epochStart  int64
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// CompilerOptions contains configuration for creating a Compiler.
type CompilerOptions struct {
	Source      string
	Entries     storage.EntryStore
	Movements   storage.MovementStore
	Checkpoints storage.CheckpointStore
	Prices      action.PriceResolver
	RefCurrency string // defaults to "USDT"
	EpochStart  int64
	Logger      zerolog.Logger
	Metrics     *observability.Metrics // optional
}

// NewCompiler creates a compiler with defaults applied.
func NewCompiler(opts CompilerOptions) *Compiler {
	if opts.RefCurrency == "" {
		opts.RefCurrency = "USDT"
	}
	return &Compiler{
		source:      opts.Source,
		entries:     opts.Entries,
		movements:   opts.Movements,
		checkpoints: opts.Checkpoints,
		prices:      opts.Prices,
		refCurrency: opts.RefCurrency,
		epochStart:  opts.EpochStart,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// CompileResult contains statistics from one compile pass.
type CompileResult struct {
	Start             int64
	End               int64
	EntriesRead       int
	MovementsAppended int
	DuplicatesSkipped int
	PriceWarnings     int
	Errors            []string
}

// Compile advances the canonical ledger through every instant all categories
// have fetched. Price-backfill failures are warnings: the affected valuation
// fields stay zero and the movement is still appended, since the ledger's
// quantities are authoritative and prices are derived decoration.
func (c *Compiler) Compile(ctx context.Context, now int64) (*CompileResult, error) {
	start, err := c.compileStart(ctx)
	if err != nil {
		return nil, err
	}
	end, err := c.compileEnd(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &CompileResult{Start: start, End: end}
	if end <= start {
		c.logger.Info().Int64("checkpoint", start).Msg("ledger already compiled through all fetched history")
		return result, nil
	}

	var batch []*domain.Entry
	for _, category := range domain.ProviderCategories() {
		entries, err := c.entries.ReadRange(ctx, c.source, category, start, end)
		if err != nil {
			return result, fmt.Errorf("read %s entries: %w", category, err)
		}
		batch = append(batch, entries...)
	}
	result.EntriesRead = len(batch)

	expanded := action.Expand(batch)
	if err := action.BackfillPrices(ctx, c.prices, c.refCurrency, expanded); err != nil {
		result.PriceWarnings = countJoined(err)
		c.logger.Warn().Err(err).Msg("some valuation fields left unpriced")
		if c.metrics != nil {
			c.metrics.PriceWarnings.Add(float64(result.PriceWarnings))
		}
	}

	movements := make([]*domain.Movement, len(expanded))
	for i, e := range expanded {
		movements[i] = e.Movement()
	}

	inserted, err := c.movements.Append(ctx, movements)
	result.MovementsAppended = inserted
	result.DuplicatesSkipped = len(movements) - inserted
	if err != nil {
		return result, fmt.Errorf("append movements: %w", err)
	}

	cp := &domain.Checkpoint{Source: c.source, Category: domain.CategoryMovements, LastUpdate: end}
	if err := c.checkpoints.Put(ctx, cp); err != nil {
		return result, fmt.Errorf("put movements checkpoint: %w", err)
	}

	if c.metrics != nil {
		c.metrics.MovementsAppended.Add(float64(inserted))
		c.metrics.LastSuccessfulCompile.SetToCurrentTime()
	}
	c.logger.Info().
		Int("entries", result.EntriesRead).
		Int("appended", result.MovementsAppended).
		Int("duplicates", result.DuplicatesSkipped).
		Int("price_warnings", result.PriceWarnings).
		Int64("through", end).
		Msg("ledger compiled")
	return result, nil
}

// Recompile rebuilds the whole movement ledger from the category stores.
func (c *Compiler) Recompile(ctx context.Context, now int64) (*CompileResult, error) {
	end, err := c.compileEnd(ctx, now)
	if err != nil {
		return nil, err
	}
	result := &CompileResult{Start: c.epochStart, End: end}

	var batch []*domain.Entry
	for _, category := range domain.ProviderCategories() {
		entries, err := c.entries.ReadRange(ctx, c.source, category, c.epochStart, end)
		if err != nil {
			return result, fmt.Errorf("read %s entries: %w", category, err)
		}
		batch = append(batch, entries...)
	}
	result.EntriesRead = len(batch)

	expanded := action.Expand(batch)
	if err := action.BackfillPrices(ctx, c.prices, c.refCurrency, expanded); err != nil {
		result.PriceWarnings = countJoined(err)
		c.logger.Warn().Err(err).Msg("some valuation fields left unpriced")
	}

	movements := make([]*domain.Movement, len(expanded))
	for i, e := range expanded {
		movements[i] = e.Movement()
	}
	if err := c.movements.Overwrite(ctx, movements); err != nil {
		return result, fmt.Errorf("overwrite movements: %w", err)
	}
	result.MovementsAppended = len(movements)

	cp := &domain.Checkpoint{Source: c.source, Category: domain.CategoryMovements, LastUpdate: end}
	if err := c.checkpoints.Put(ctx, cp); err != nil {
		return result, fmt.Errorf("put movements checkpoint: %w", err)
	}
	return result, nil
}

func (c *Compiler) compileStart(ctx context.Context) (int64, error) {
	cp, err := c.checkpoints.Get(ctx, c.source, domain.CategoryMovements)
	if errors.Is(err, storage.ErrNotFound) {
		return c.epochStart, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load movements checkpoint: %w", err)
	}
	return cp.LastUpdate, nil
}

// compileEnd is the minimum checkpoint across all provider categories: only
// instants every category has fetched may enter the canonical ledger.
func (c *Compiler) compileEnd(ctx context.Context, now int64) (int64, error) {
	end := now
	for _, category := range domain.ProviderCategories() {
		cp, err := c.checkpoints.Get(ctx, c.source, category)
		if errors.Is(err, storage.ErrNotFound) {
			return c.epochStart, nil
		}
		if err != nil {
			return 0, fmt.Errorf("load %s checkpoint: %w", category, err)
		}
		if cp.LastUpdate < end {
			end = cp.LastUpdate
		}
	}
	return end, nil
}

func countJoined(err error) int {
	type unwrapper interface{ Unwrap() []error }
	if u, ok := err.(unwrapper); ok {
		return len(u.Unwrap())
	}
	if err != nil {
		return 1
	}
	return 0
}
