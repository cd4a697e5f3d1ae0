// Package main runs the pipeline on a schedule and serves metrics, a live
// portfolio snapshot and run status over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/analytics"
	"exchange-ledger/internal/config"
	"exchange-ledger/internal/ledger"
	"exchange-ledger/internal/observability"
	"exchange-ledger/internal/orchestrator"
	"exchange-ledger/internal/portfolio"
	"exchange-ledger/internal/pricefeed"
	"exchange-ledger/internal/pricing"
	"exchange-ledger/internal/provider/stub"
	"exchange-ledger/internal/reporting"
	"exchange-ledger/internal/storage"
	chstore "exchange-ledger/internal/storage/clickhouse"
	"exchange-ledger/internal/storage/memory"
	"exchange-ledger/internal/storage/migrations"
	pgstore "exchange-ledger/internal/storage/postgres"
)

// Server schedules pipeline runs and exposes their state.
type Server struct {
	cfg        *config.Config
	epochStart int64
	fixtures   *stub.Fixtures
	provider   *stub.Provider
	stores     *pipelineStores
	metrics    *observability.Metrics
	feed       *pricefeed.Client
	logger     zerolog.Logger

	mu          sync.Mutex
	lastRun     time.Time
	lastErrors  []string
	runs        int
	runInFlight bool
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when omitted)")
	fixturesPath := flag.String("fixtures", "", "Path to JSON provider fixtures")
	interval := flag.Duration("interval", time.Hour, "Pipeline run interval")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	server := &Server{
		cfg:        cfg,
		epochStart: epochStart,
		fixtures:   fixtures,
		provider:   fixtures.Provider(cfg.Source.Code),
		stores:     stores,
		metrics:    observability.NewMetrics(""),
		logger:     logger,
	}

	if cfg.Pricing.FeedURL != "" {
		feed, err := pricefeed.New(ctx, cfg.Pricing.FeedURL, nil, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("price feed unavailable, snapshots fall back to candle history")
		} else {
			server.feed = feed
			defer feed.Close()
		}
	}

	go server.serveHTTP(cfg.Observability.ListenAddr)

	server.runLoop(ctx, *interval)
	logger.Info().Msg("shutdown complete")
}

// runLoop runs the pipeline immediately and then on every tick.
func (s *Server) runLoop(ctx context.Context, interval time.Duration) {
	s.runPipeline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

// runPipeline builds a fresh orchestrator per run: the price source caches
// candle series for its lifetime, so it must not outlive one pass.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.runInFlight {
		s.mu.Unlock()
		s.logger.Warn().Msg("pipeline already running, skipping tick")
		return
	}
	s.runInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runInFlight = false
		s.lastRun = time.Now()
		s.runs++
		s.mu.Unlock()
	}()

	cfg := s.cfg
	builder := action.NewBuilder(cfg.Source.Code, action.BinanceKeyMaps(), cfg.Source.SettlementAsset)
	prices := pricing.NewSource(s.stores.candles, cfg.Pricing.RefCurrency, cfg.Pricing.IntervalSeconds)

	orch := orchestrator.New(orchestrator.Options{
		Updater: ledger.NewUpdater(ledger.UpdaterOptions{
			Provider:    s.provider,
			Builder:     builder,
			Entries:     s.stores.entries,
			Checkpoints: s.stores.checkpoints,
			RefCurrency: cfg.Pricing.RefCurrency,
			WindowDays:  cfg.Update.WindowDays,
			EpochStart:  s.epochStart,
			MaxRetries:  cfg.Update.MaxRetries,
			RetryBase:   cfg.Update.RetryBase,
			Logger:      s.logger,
			Metrics:     s.metrics,
		}),
		Compiler: ledger.NewCompiler(ledger.CompilerOptions{
			Source:      cfg.Source.Code,
			Entries:     s.stores.entries,
			Movements:   s.stores.movements,
			Checkpoints: s.stores.checkpoints,
			Prices:      prices,
			RefCurrency: cfg.Pricing.RefCurrency,
			EpochStart:  s.epochStart,
			Logger:      s.logger,
			Metrics:     s.metrics,
		}),
		MarketData: ledger.NewMarketDataUpdater(ledger.MarketDataOptions{
			Source:          s.fixtures.CandleSource(),
			Store:           s.stores.candles,
			IntervalSeconds: cfg.Pricing.IntervalSeconds,
			EpochStart:      s.epochStart,
			Logger:          s.logger,
			Metrics:         s.metrics,
		}),
		Generator: reporting.NewGenerator(
			s.stores.movements,
			analytics.NewEngine(prices, cfg.Analytics.RiskFreeRate),
			cfg.Source.Code, cfg.Pricing.RefCurrency, cfg.Analytics.RollingWindow,
		),
		Entries:     s.stores.entries,
		Source:      cfg.Source.Code,
		RefCurrency: cfg.Pricing.RefCurrency,
		EpochStart:  s.epochStart,
		OutputDir:   cfg.Reporting.OutputDir,
		Logger:      s.logger,
		Metrics:     s.metrics,
	})

	result := orch.Run(ctx)

	s.mu.Lock()
	s.lastErrors = result.Errors
	s.mu.Unlock()
}

func (s *Server) serveHTTP(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/snapshot", s.handleSnapshot)

	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Error().Err(err).Msg("http server stopped")
	}
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status     string    `json:"status"`
	LastRun    time.Time `json:"last_run,omitempty"`
	Runs       int       `json:"runs"`
	Running    bool      `json:"running"`
	LastErrors []string  `json:"last_errors,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		LastRun:    s.lastRun,
		Runs:       s.runs,
		Running:    s.runInFlight,
		LastErrors: s.lastErrors,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleSnapshot values the account's current balances: live feed prices
// first, candle history as fallback.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	prices := pricing.NewSource(s.stores.candles, s.cfg.Pricing.RefCurrency, s.cfg.Pricing.IntervalSeconds)
	snapshotter := portfolio.NewSnapshotter(s.provider, prices, s.feed, s.cfg.Pricing.RefCurrency)

	snapshot, err := snapshotter.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
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
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
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
			return nil, nil, err
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
