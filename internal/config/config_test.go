package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BINANCE_API_KEY", "BINANCE_API_SECRET", "HYDRA_MAX_HOPS",
		"HYDRA_MIN_PROFIT_PCT", "HYDRA_SIZING_REGIME", "HYDRA_MAX_CONCURRENT_PATHS",
		"HYDRA_DAILY_LOSS_LIMIT_PCT", "HYDRA_STRATEGY_FILE",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	if err != ErrMissingCredentials {
		t.Errorf("Load() error = %v, want ErrMissingCredentials", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("BINANCE_API_KEY", "key")
	os.Setenv("BINANCE_API_SECRET", "secret")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHops != 4 {
		t.Errorf("MaxHops = %d, want 4", cfg.MaxHops)
	}
	if cfg.SizingRegime != SizingFixed {
		t.Errorf("SizingRegime = %v, want fixed", cfg.SizingRegime)
	}
	if cfg.Endpoints.Primary != EndpointPrimary {
		t.Errorf("Primary = %q, want %q", cfg.Endpoints.Primary, EndpointPrimary)
	}
	if len(cfg.Endpoints.Alternates) != 4 {
		t.Errorf("expected 4 alternates, got %d", len(cfg.Endpoints.Alternates))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("BINANCE_API_KEY", "key")
	os.Setenv("BINANCE_API_SECRET", "secret")
	os.Setenv("HYDRA_MAX_HOPS", "3")
	os.Setenv("HYDRA_SIZING_REGIME", "kelly")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHops != 3 {
		t.Errorf("MaxHops = %d, want 3", cfg.MaxHops)
	}
	if cfg.SizingRegime != SizingKelly {
		t.Errorf("SizingRegime = %v, want kelly", cfg.SizingRegime)
	}
}

func TestLoad_StrategyFileOverride(t *testing.T) {
	clearEnv(t)
	os.Setenv("BINANCE_API_KEY", "key")
	os.Setenv("BINANCE_API_SECRET", "secret")
	defer clearEnv(t)

	tmp, err := os.CreateTemp("", "strategy_*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.WriteString("max_hops: 5\nmin_profit_percent: 1.2\n")
	tmp.Close()

	os.Setenv("HYDRA_STRATEGY_FILE", tmp.Name())
	defer os.Unsetenv("HYDRA_STRATEGY_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHops != 5 {
		t.Errorf("MaxHops = %d, want 5", cfg.MaxHops)
	}
	if cfg.MinProfitPercent != 1.2 {
		t.Errorf("MinProfitPercent = %v, want 1.2", cfg.MinProfitPercent)
	}
}
