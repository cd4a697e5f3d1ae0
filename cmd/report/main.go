// Package main generates a performance report from the already-compiled
// ledger without touching the provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/analytics"
	"exchange-ledger/internal/config"
	"exchange-ledger/internal/pricing"
	"exchange-ledger/internal/reporting"
	"exchange-ledger/internal/storage"
	chstore "exchange-ledger/internal/storage/clickhouse"
	"exchange-ledger/internal/storage/migrations"
	pgstore "exchange-ledger/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	outputDir := flag.String("output-dir", "", "Override the configured report output directory")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfg *config.Config
	var err error
	if *configPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load config")
		}
	}
	if *outputDir != "" {
		cfg.Reporting.OutputDir = *outputDir
	}
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickHouseDSN == "" {
		logger.Fatal().Msg("report generation reads persisted stores: storage.postgres_dsn and storage.clickhouse_dsn are required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate postgres")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to clickhouse")
	}
	defer conn.Close()

	var movements storage.MovementStore = pgstore.NewMovementStore(pool)
	var candles storage.CandleStore = chstore.NewCandleStore(conn)

	prices := pricing.NewSource(candles, cfg.Pricing.RefCurrency, cfg.Pricing.IntervalSeconds)
	engine := analytics.NewEngine(prices, cfg.Analytics.RiskFreeRate)
	generator := reporting.NewGenerator(
		movements, engine,
		cfg.Source.Code, cfg.Pricing.RefCurrency, cfg.Analytics.RollingWindow,
	)

	report, err := generator.Generate(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate report")
	}
	if err := generator.WriteFiles(report, cfg.Reporting.OutputDir); err != nil {
		logger.Fatal().Err(err).Msg("write report files")
	}

	s := report.Summary
	fmt.Printf("Report written to %s/\n", cfg.Reporting.OutputDir)
	fmt.Printf("  period: %d days, NAV %.2f -> %.2f\n", len(report.NAV), s.NAVStart, s.NAVEnd)
	fmt.Printf("  annualized return %.2f%%, volatility %.2f%%, sharpe %.3f\n",
		s.AnnualizedReturn*100, s.AnnualizedVolatility*100, s.Sharpe)
	if len(s.Errors) > 0 {
		fmt.Printf("  incomplete statistics: %d (see report)\n", len(s.Errors))
	}
}
