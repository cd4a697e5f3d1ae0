package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  code: e0042\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source.Code != "e0042" {
		t.Errorf("source code = %s, want e0042", cfg.Source.Code)
	}
	if cfg.Update.WindowDays != 90 {
		t.Errorf("default window days = %d, want 90", cfg.Update.WindowDays)
	}
	if cfg.Pricing.RefCurrency != "USDT" {
		t.Errorf("default ref currency = %s, want USDT", cfg.Pricing.RefCurrency)
	}
	if cfg.Source.SettlementAsset != "BNB" {
		t.Errorf("default settlement asset = %s, want BNB", cfg.Source.SettlementAsset)
	}

	epoch, err := cfg.EpochStartMs()
	if err != nil {
		t.Fatalf("EpochStartMs failed: %v", err)
	}
	if epoch != 1483228800000 { // 2017-01-01T00:00:00Z
		t.Errorf("default epoch = %d, want 1483228800000", epoch)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
update:
  window_days: 30
  epoch_start: "2020-06-01"
pricing:
  ref_currency: BUSD
  interval_seconds: 86400
analytics:
  risk_free_rate: 0.02
  rolling_window: 14
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Update.WindowDays != 30 {
		t.Errorf("window days = %d, want 30", cfg.Update.WindowDays)
	}
	if cfg.Pricing.IntervalSeconds != 86400 {
		t.Errorf("interval = %d, want 86400", cfg.Pricing.IntervalSeconds)
	}
	if cfg.Analytics.RiskFreeRate != 0.02 {
		t.Errorf("risk-free rate = %v, want 0.02", cfg.Analytics.RiskFreeRate)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad epoch format",
			content: "update:\n  epoch_start: \"01/01/2017\"\n",
			wantErr: "epoch_start",
		},
		{
			name:    "bad interval",
			content: "pricing:\n  interval_seconds: 60\n",
			wantErr: "interval_seconds",
		},
		{
			name:    "negative risk-free rate",
			content: "analytics:\n  risk_free_rate: -0.5\n",
			wantErr: "risk_free_rate",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}
