package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/observability"
	"exchange-ledger/internal/provider"
	"exchange-ledger/internal/storage"
)

// Updater runs the incremental update protocol: it fetches raw records per
// category in bounded request windows, normalizes them into entries, appends
// them idempotently and advances the per-category checkpoint.
//
// The updater assumes exclusive-writer access for the duration of one run;
// concurrent runs against the same stores must be prevented by the caller.
type Updater struct {
	provider    provider.Provider
	builder     *action.Builder
	entries     storage.EntryStore
	checkpoints storage.CheckpointStore
	refCurrency string
	windowSpan  int64
	epochStart  int64
	maxRetries  int
	retryBase   time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// UpdaterOptions contains configuration for creating an Updater.
type UpdaterOptions struct {
	Provider    provider.Provider
	Builder     *action.Builder
	Entries     storage.EntryStore
	Checkpoints storage.CheckpointStore
	RefCurrency string // defaults to "USDT"
	WindowDays  int    // defaults to DefaultWindowDays
	EpochStart  int64  // history floor when no checkpoint exists
	MaxRetries  int    // per-window fetch attempts, defaults to 3
	RetryBase   time.Duration
	Logger      zerolog.Logger
	Metrics     *observability.Metrics // optional
}

// NewUpdater creates an updater with defaults applied.
func NewUpdater(opts UpdaterOptions) *Updater {
	if opts.RefCurrency == "" {
		opts.RefCurrency = "USDT"
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	return &Updater{
		provider:    opts.Provider,
		builder:     opts.Builder,
		entries:     opts.Entries,
		checkpoints: opts.Checkpoints,
		refCurrency: opts.RefCurrency,
		windowSpan:  WindowSpanMs(opts.WindowDays),
		epochStart:  opts.EpochStart,
		maxRetries:  opts.MaxRetries,
		retryBase:   opts.RetryBase,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// CategoryResult contains statistics from updating one category.
type CategoryResult struct {
	Category          domain.Category
	WindowsProcessed  int
	WindowsFailed     int
	RecordsFetched    int
	EntriesAppended   int
	DuplicatesSkipped int
	MalformedSkipped  int
	Checkpoint        int64 // checkpoint after the run
	Errors            []string
}

// UpdateAll updates every provider category up to now. Categories fail
// independently; the returned slice always has one result per category.
func (u *Updater) UpdateAll(ctx context.Context, now int64) []CategoryResult {
	results := make([]CategoryResult, 0, len(domain.ProviderCategories()))
	for _, category := range domain.ProviderCategories() {
		result := u.UpdateCategory(ctx, category, now)
		results = append(results, result)
	}
	return results
}

// UpdateCategory updates one category up to now. A first run with no
// checkpoint replaces the category store from the epoch floor; afterwards
// fetches append. A failed window is logged and retried on the next run:
// later windows still execute (dedup makes the overlap safe), but the
// checkpoint only advances through the longest contiguous prefix of
// successful windows so no gap can ever be skipped over.
func (u *Updater) UpdateCategory(ctx context.Context, category domain.Category, now int64) CategoryResult {
	result := CategoryResult{Category: category}

	cp, found, err := u.loadCheckpoint(ctx, category)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("load checkpoint: %v", err))
		return result
	}
	result.Checkpoint = cp.LastUpdate

	windows := Windows(cp.LastUpdate, now, u.windowSpan)
	if len(windows) == 0 {
		return result
	}

	if !found {
		// First run for this category replaces the store: rows orphaned from
		// a lost checkpoint may no longer exist upstream, so appending around
		// them would keep stale history forever.
		if err := u.entries.Overwrite(ctx, u.provider.Code(), category, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reset category store: %v", err))
			return result
		}
	}

	u.logger.Info().
		Str("category", string(category)).
		Int("windows", len(windows)).
		Int64("from", cp.LastUpdate).
		Int64("to", now).
		Msg("updating category")

	prefixIntact := true
	var seenAssets []string

	for _, w := range windows {
		stats, werr := u.updateWindow(ctx, category, cp, w)
		result.WindowsProcessed++
		result.RecordsFetched += stats.fetched
		result.EntriesAppended += stats.appended
		result.DuplicatesSkipped += stats.duplicates
		result.MalformedSkipped += stats.malformed
		seenAssets = append(seenAssets, stats.assets...)

		if werr != nil {
			result.WindowsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("window [%d, %d): %v", w.Start, w.End, werr))
			u.logger.Warn().Err(werr).
				Str("category", string(category)).
				Int64("start", w.Start).
				Int64("end", w.End).
				Msg("window failed, will retry next run")
			if u.metrics != nil {
				u.metrics.WindowFailures.WithLabelValues(string(category)).Inc()
			}
			prefixIntact = false
			continue
		}
		if prefixIntact {
			result.Checkpoint = w.End
		}
	}

	cp.LastUpdate = result.Checkpoint
	cp.MergeAssets(seenAssets)
	if err := u.checkpoints.Put(ctx, cp); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("put checkpoint: %v", err))
		return result
	}

	if u.metrics != nil {
		u.metrics.RecordsFetched.WithLabelValues(string(category)).Add(float64(result.RecordsFetched))
		u.metrics.EntriesAppended.WithLabelValues(string(category)).Add(float64(result.EntriesAppended))
		u.metrics.DuplicatesSkipped.WithLabelValues(string(category)).Add(float64(result.DuplicatesSkipped))
		u.metrics.MalformedRecords.WithLabelValues(string(category)).Add(float64(result.MalformedSkipped))
		if result.WindowsFailed == 0 {
			u.metrics.LastSuccessfulUpdate.WithLabelValues(string(category)).SetToCurrentTime()
		}
	}

	u.logger.Info().
		Str("category", string(category)).
		Int("fetched", result.RecordsFetched).
		Int("appended", result.EntriesAppended).
		Int("duplicates", result.DuplicatesSkipped).
		Int("malformed", result.MalformedSkipped).
		Int("failed_windows", result.WindowsFailed).
		Int64("checkpoint", result.Checkpoint).
		Msg("category update complete")
	return result
}

// loadCheckpoint returns the category's checkpoint and whether one existed.
func (u *Updater) loadCheckpoint(ctx context.Context, category domain.Category) (*domain.Checkpoint, bool, error) {
	cp, err := u.checkpoints.Get(ctx, u.provider.Code(), category)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.Checkpoint{
			Source:     u.provider.Code(),
			Category:   category,
			LastUpdate: u.epochStart,
		}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if cp.LastUpdate < u.epochStart {
		cp.LastUpdate = u.epochStart
	}
	return cp, true, nil
}

type windowStats struct {
	fetched    int
	appended   int
	duplicates int
	malformed  int
	assets     []string
}

func (u *Updater) updateWindow(ctx context.Context, category domain.Category, cp *domain.Checkpoint, w Window) (windowStats, error) {
	var stats windowStats

	var entries []*domain.Entry
	var err error
	if category == domain.CategoryTrade {
		entries, stats, err = u.fetchTradeWindow(ctx, cp, w)
	} else {
		entries, stats, err = u.fetchCategoryWindow(ctx, category, w)
	}

	// A partially fetched trade window still persists what it got: the halted
	// checkpoint refetches the whole window next run and dedup absorbs it.
	if len(entries) > 0 {
		inserted, appendErr := u.entries.Append(ctx, entries)
		stats.appended = inserted
		stats.duplicates = len(entries) - inserted
		if appendErr != nil {
			return stats, errors.Join(err, fmt.Errorf("append entries: %w", appendErr))
		}
		for _, e := range entries {
			if e.Category == domain.CategoryTrade {
				stats.assets = append(stats.assets, e.Asset)
			}
		}
	}
	return stats, err
}

func (u *Updater) fetchCategoryWindow(ctx context.Context, category domain.Category, w Window) ([]*domain.Entry, windowStats, error) {
	var stats windowStats

	records, err := u.fetchWithRetry(ctx, func(ctx context.Context) ([]action.Record, error) {
		return provider.FetchCategory(ctx, u.provider, category, w.Start, w.End)
	})
	if err != nil {
		return nil, stats, err
	}
	stats.fetched = len(records)

	entries := make([]*domain.Entry, 0, len(records))
	for _, rec := range records {
		entry, err := u.builder.Build(category, rec)
		if err != nil {
			stats.malformed++
			u.logger.Warn().Err(err).Str("category", string(category)).Msg("skipping malformed record")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, stats, nil
}

// fetchTradeWindow fetches fills per asset: the trade endpoint is
// symbol-scoped, so the asset universe is the checkpoint's known assets plus
// whatever the account currently holds. Delisted symbols are skipped. One
// asset's failure fails the window but not its siblings: the rest still
// fetch, and the halted checkpoint retries the whole window next run.
func (u *Updater) fetchTradeWindow(ctx context.Context, cp *domain.Checkpoint, w Window) ([]*domain.Entry, windowStats, error) {
	var stats windowStats

	assets, err := u.tradeAssets(ctx, cp)
	if err != nil {
		return nil, stats, err
	}

	var entries []*domain.Entry
	var assetErrs []error
	for _, asset := range assets {
		symbol := asset + u.refCurrency
		tradable, err := u.provider.IsTradable(ctx, symbol)
		if err != nil {
			assetErrs = append(assetErrs, fmt.Errorf("check symbol %s: %w", symbol, err))
			continue
		}
		if !tradable {
			u.logger.Debug().Str("symbol", symbol).Msg("skipping inactive symbol")
			continue
		}

		records, err := u.fetchWithRetry(ctx, func(ctx context.Context) ([]action.Record, error) {
			return u.provider.FetchTrades(ctx, asset, w.Start, w.End)
		})
		if err != nil {
			assetErrs = append(assetErrs, fmt.Errorf("fetch trades for %s: %w", asset, err))
			continue
		}
		stats.fetched += len(records)

		for _, rec := range records {
			entry, err := u.builder.Trade(rec, asset)
			if err != nil {
				stats.malformed++
				u.logger.Warn().Err(err).Str("asset", asset).Msg("skipping malformed trade")
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, stats, errors.Join(assetErrs...)
}

func (u *Updater) tradeAssets(ctx context.Context, cp *domain.Checkpoint) ([]string, error) {
	holdings, err := u.provider.CurrentHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("current holdings: %w", err)
	}

	seen := make(map[string]struct{})
	var assets []string
	add := func(asset string) {
		if asset == "" || action.CanonicalAsset(asset) == action.CanonicalAsset(u.refCurrency) {
			return
		}
		if _, ok := seen[asset]; ok {
			return
		}
		seen[asset] = struct{}{}
		assets = append(assets, asset)
	}
	for _, asset := range cp.KnownAssets {
		add(asset)
	}
	for asset := range holdings {
		add(asset)
	}
	sort.Strings(assets)
	return assets, nil
}

// fetchWithRetry retries a fetch with doubling backoff. Backoff is per
// window, never global: one flaky window must not stall its siblings.
func (u *Updater) fetchWithRetry(ctx context.Context, fetch func(context.Context) ([]action.Record, error)) ([]action.Record, error) {
	var lastErr error
	delay := u.retryBase
	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		records, err := fetch(ctx)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if attempt == u.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetrieval, u.maxRetries, lastErr)
}

// Rebuild refetches a category's full history from the epoch floor and
// replaces the category store wholesale. The checkpoint is rewritten to the
// rebuilt range's end.
func (u *Updater) Rebuild(ctx context.Context, category domain.Category, now int64) CategoryResult {
	result := CategoryResult{Category: category}

	cp := &domain.Checkpoint{
		Source:     u.provider.Code(),
		Category:   category,
		LastUpdate: u.epochStart,
	}

	var all []*domain.Entry
	var seenAssets []string
	for _, w := range Windows(u.epochStart, now, u.windowSpan) {
		var entries []*domain.Entry
		var stats windowStats
		var err error
		if category == domain.CategoryTrade {
			entries, stats, err = u.fetchTradeWindow(ctx, cp, w)
		} else {
			entries, stats, err = u.fetchCategoryWindow(ctx, category, w)
		}
		result.WindowsProcessed++
		result.RecordsFetched += stats.fetched
		result.MalformedSkipped += stats.malformed
		if err != nil {
			// A rebuild must be complete or not happen at all.
			result.WindowsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("window [%d, %d): %v", w.Start, w.End, err))
			return result
		}
		all = append(all, entries...)
		for _, e := range entries {
			if e.Category == domain.CategoryTrade {
				seenAssets = append(seenAssets, e.Asset)
			}
		}
		// Known assets accumulate as the rebuild walks forward so later trade
		// windows query assets first seen in earlier ones.
		cp.MergeAssets(seenAssets)
	}

	if err := u.entries.Overwrite(ctx, u.provider.Code(), category, all); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("overwrite entries: %v", err))
		return result
	}
	result.EntriesAppended = len(all)

	cp.LastUpdate = now
	result.Checkpoint = now
	if err := u.checkpoints.Put(ctx, cp); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("put checkpoint: %v", err))
	}
	return result
}
