// Package main runs one full pipeline pass: fetch account activity, refresh
// market data, compile the canonical ledger and generate a performance
// report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/analytics"
	"exchange-ledger/internal/config"
	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/ledger"
	"exchange-ledger/internal/orchestrator"
	"exchange-ledger/internal/pricing"
	"exchange-ledger/internal/provider/stub"
	"exchange-ledger/internal/reporting"
	"exchange-ledger/internal/storage"
	chstore "exchange-ledger/internal/storage/clickhouse"
	"exchange-ledger/internal/storage/memory"
	"exchange-ledger/internal/storage/migrations"
	pgstore "exchange-ledger/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when omitted)")
	fixturesPath := flag.String("fixtures", "", "Path to JSON provider fixtures")
	fullRebuild := flag.Bool("full-rebuild", false, "Refetch all categories from the epoch floor and recompile")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	epochStart, err := cfg.EpochStartMs()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse epoch start")
	}

	if *fixturesPath == "" {
		logger.Fatal().Msg("-fixtures is required: the pipeline runs against a fixture-backed provider")
	}
	fixtures, err := stub.LoadFixtures(*fixturesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load fixtures")
	}
	provider := fixtures.Provider(cfg.Source.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("cancelling run")
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	builder := action.NewBuilder(cfg.Source.Code, action.BinanceKeyMaps(), cfg.Source.SettlementAsset)
	prices := pricing.NewSource(stores.candles, cfg.Pricing.RefCurrency, cfg.Pricing.IntervalSeconds)

	updater := ledger.NewUpdater(ledger.UpdaterOptions{
		Provider:    provider,
		Builder:     builder,
		Entries:     stores.entries,
		Checkpoints: stores.checkpoints,
		RefCurrency: cfg.Pricing.RefCurrency,
		WindowDays:  cfg.Update.WindowDays,
		EpochStart:  epochStart,
		MaxRetries:  cfg.Update.MaxRetries,
		RetryBase:   cfg.Update.RetryBase,
		Logger:      logger,
	})
	compiler := ledger.NewCompiler(ledger.CompilerOptions{
		Source:      cfg.Source.Code,
		Entries:     stores.entries,
		Movements:   stores.movements,
		Checkpoints: stores.checkpoints,
		Prices:      prices,
		RefCurrency: cfg.Pricing.RefCurrency,
		EpochStart:  epochStart,
		Logger:      logger,
	})
	marketData := ledger.NewMarketDataUpdater(ledger.MarketDataOptions{
		Source:          fixtures.CandleSource(),
		Store:           stores.candles,
		IntervalSeconds: cfg.Pricing.IntervalSeconds,
		EpochStart:      epochStart,
		Logger:          logger,
	})
	engine := analytics.NewEngine(prices, cfg.Analytics.RiskFreeRate)
	generator := reporting.NewGenerator(
		stores.movements, engine,
		cfg.Source.Code, cfg.Pricing.RefCurrency, cfg.Analytics.RollingWindow,
	)

	if *fullRebuild {
		runFullRebuild(ctx, logger, updater, compiler)
	}

	orch := orchestrator.New(orchestrator.Options{
		Updater:     updater,
		Compiler:    compiler,
		MarketData:  marketData,
		Generator:   generator,
		Entries:     stores.entries,
		Source:      cfg.Source.Code,
		RefCurrency: cfg.Pricing.RefCurrency,
		EpochStart:  epochStart,
		OutputDir:   cfg.Reporting.OutputDir,
		Logger:      logger,
	})

	result := orch.Run(ctx)
	printRunResult(result)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// runFullRebuild refetches every category from the epoch floor and recompiles
// the whole ledger before the regular incremental pass runs.
func runFullRebuild(ctx context.Context, logger zerolog.Logger, updater *ledger.Updater, compiler *ledger.Compiler) {
	now := time.Now().UnixMilli()
	for _, category := range domain.ProviderCategories() {
		result := updater.Rebuild(ctx, category, now)
		if len(result.Errors) > 0 {
			logger.Fatal().Strs("errors", result.Errors).Str("category", string(category)).Msg("rebuild failed")
		}
		logger.Info().
			Str("category", string(category)).
			Int("entries", result.EntriesAppended).
			Msg("category rebuilt")
	}
	if _, err := compiler.Recompile(ctx, now); err != nil {
		logger.Fatal().Err(err).Msg("recompile failed")
	}
}

func printRunResult(result *orchestrator.RunResult) {
	fmt.Printf("Run completed in %v\n", result.Duration)
	for _, cr := range result.Categories {
		fmt.Printf("  %-14s fetched=%d appended=%d duplicates=%d malformed=%d failed_windows=%d\n",
			cr.Category, cr.RecordsFetched, cr.EntriesAppended,
			cr.DuplicatesSkipped, cr.MalformedSkipped, cr.WindowsFailed)
	}
	if result.MarketData != nil {
		fmt.Printf("  market data: %d symbols, %d candles inserted\n",
			result.MarketData.SymbolsUpdated, result.MarketData.CandlesInserted)
	}
	if result.Compile != nil {
		fmt.Printf("  compile: %d entries -> %d movements (%d duplicates, %d price warnings)\n",
			result.Compile.EntriesRead, result.Compile.MovementsAppended,
			result.Compile.DuplicatesSkipped, result.Compile.PriceWarnings)
	}
	if result.Report != nil && result.Report.Summary != nil {
		s := result.Report.Summary
		fmt.Printf("  NAV: %.2f -> %.2f\n", s.NAVStart, s.NAVEnd)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("  errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}

// pipelineStores holds one implementation of every store interface.
type pipelineStores struct {
	entries     storage.EntryStore
	movements   storage.MovementStore
	checkpoints storage.CheckpointStore
	candles     storage.CandleStore
}

// createStores selects backends from the config: Postgres/ClickHouse when
// DSNs are set, memory otherwise. Migrations run on every start and are
// idempotent.
func createStores(ctx context.Context, cfg *config.Config) (*pipelineStores, func(), error) {
	stores := &pipelineStores{
		entries:     memory.NewEntryStore(),
		movements:   memory.NewMovementStore(),
		checkpoints: memory.NewCheckpointStore(),
		candles:     memory.NewCandleStore(),
	}
	cleanup := func() {}

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		stores.entries = pgstore.NewEntryStore(pool)
		stores.movements = pgstore.NewMovementStore(pool)
		stores.checkpoints = pgstore.NewCheckpointStore(pool)
		cleanup = pool.Close
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		stores.candles = chstore.NewCandleStore(conn)
		pgCleanup := cleanup
		cleanup = func() {
			conn.Close()
			pgCleanup()
		}
	}

	return stores, cleanup, nil
}
