// Package config loads the pipeline configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pipeline configuration.
type Config struct {
	Source        SourceConfig        `yaml:"source"`
	Update        UpdateConfig        `yaml:"update"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Storage       StorageConfig       `yaml:"storage"`
	Reporting     ReportingConfig     `yaml:"reporting"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SourceConfig identifies the exchange account being ingested.
type SourceConfig struct {
	Code            string `yaml:"code"`             // data-source code, e.g. "e0001"
	SettlementAsset string `yaml:"settlement_asset"` // dust-sweep settlement token
}

// UpdateConfig tunes the incremental update protocol.
type UpdateConfig struct {
	WindowDays int           `yaml:"window_days"`
	EpochStart string        `yaml:"epoch_start"` // "2006-01-02", history floor
	MaxRetries int           `yaml:"max_retries"`
	RetryBase  time.Duration `yaml:"retry_base"`
}

// PricingConfig selects the valuation inputs.
type PricingConfig struct {
	RefCurrency     string `yaml:"ref_currency"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	FeedURL         string `yaml:"feed_url"` // websocket ticker endpoint for live prices
}

// StorageConfig holds backend connection strings. Empty DSNs select the
// in-memory backends.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// ReportingConfig controls report generation.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// AnalyticsConfig tunes the statistics suite.
type AnalyticsConfig struct {
	RiskFreeRate  float64 `yaml:"risk_free_rate"`
	RollingWindow int     `yaml:"rolling_window"`
}

// ObservabilityConfig controls the metrics endpoint.
type ObservabilityConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and validates a config file, applying defaults for anything
// omitted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Source.Code == "" {
		c.Source.Code = "e0001"
	}
	if c.Source.SettlementAsset == "" {
		c.Source.SettlementAsset = "BNB"
	}
	if c.Update.WindowDays == 0 {
		c.Update.WindowDays = 90
	}
	if c.Update.EpochStart == "" {
		c.Update.EpochStart = "2017-01-01"
	}
	if c.Update.MaxRetries == 0 {
		c.Update.MaxRetries = 3
	}
	if c.Update.RetryBase == 0 {
		c.Update.RetryBase = time.Second
	}
	if c.Pricing.RefCurrency == "" {
		c.Pricing.RefCurrency = "USDT"
	}
	if c.Pricing.IntervalSeconds == 0 {
		c.Pricing.IntervalSeconds = 3600
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = "reports"
	}
	if c.Analytics.RollingWindow == 0 {
		c.Analytics.RollingWindow = 30
	}
	if c.Observability.ListenAddr == "" {
		c.Observability.ListenAddr = ":9090"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Update.WindowDays < 1 {
		return fmt.Errorf("update.window_days must be positive, got %d", c.Update.WindowDays)
	}
	if c.Update.MaxRetries < 1 {
		return fmt.Errorf("update.max_retries must be positive, got %d", c.Update.MaxRetries)
	}
	if _, err := c.EpochStartMs(); err != nil {
		return err
	}
	if c.Pricing.IntervalSeconds != 3600 && c.Pricing.IntervalSeconds != 86400 {
		return fmt.Errorf("pricing.interval_seconds must be 3600 or 86400, got %d", c.Pricing.IntervalSeconds)
	}
	if c.Analytics.RiskFreeRate < 0 || c.Analytics.RiskFreeRate > 1 {
		return fmt.Errorf("analytics.risk_free_rate must be in [0, 1], got %v", c.Analytics.RiskFreeRate)
	}
	if c.Analytics.RollingWindow < 2 {
		return fmt.Errorf("analytics.rolling_window must be at least 2, got %d", c.Analytics.RollingWindow)
	}
	return nil
}

// EpochStartMs parses the history floor into Unix milliseconds.
func (c *Config) EpochStartMs() (int64, error) {
	t, err := time.Parse("2006-01-02", c.Update.EpochStart)
	if err != nil {
		return 0, fmt.Errorf("update.epoch_start: %w", err)
	}
	return t.UnixMilli(), nil
}
