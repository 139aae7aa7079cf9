// Package config loads process configuration: required exchange
// credentials from the environment, optional strategy overrides from a
// YAML file, and the fixed endpoint pool this engine trades against.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/p3dr-dev/hydra/internal/exchange"
)

// Endpoint pool constants. The primary and alternates are REST hosts;
// MarketData is the dedicated low-latency market-data host every
// streaming subscription (ticker, depth, user data) connects to.
const (
	EndpointPrimary = "https://api.binance.com"

	EndpointAlt1 = "https://api1.binance.com"
	EndpointAlt2 = "https://api2.binance.com"
	EndpointAlt3 = "https://api3.binance.com"
	EndpointAlt4 = "https://api4.binance.com"

	EndpointMarketData = "wss://data-stream.binance.vision"
)

// SizingRegime selects the position-sizing rule the risk layer applies.
type SizingRegime string

const (
	SizingFixed      SizingRegime = "fixed"
	SizingVolatility SizingRegime = "volatility"
	SizingKelly      SizingRegime = "kelly"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	APIKey    string
	APISecret string

	Endpoints exchange.ClientConfig

	MaxHops             int
	MinProfitPercent    float64
	MinNotional         float64
	SizingRegime        SizingRegime
	MaxConcurrentPaths  int
	DailyLossLimitPct   float64

	// Base risk parameters, before the per-cycle dynamic-scaling multiplier
	// the risk layer derives from market-wide volatility.
	MaxPortfolioRisk       float64
	StopLossPercent        float64
	TakeProfitPercent      float64
	MaxConcurrentPositions int
	MinPositionSize        float64

	// TargetRisk is the volatility-regime's target risk fraction: position
	// size is targetRisk/path_volatility, clamped to [0, 0.5].
	TargetRisk float64

	LogLevel  string
	LogFormat string

	DBPath string
}

// ErrMissingCredentials is returned when required env vars are absent.
var ErrMissingCredentials = fmt.Errorf("config: BINANCE_API_KEY and BINANCE_API_SECRET are required")

// strategyOverrides mirrors the optional YAML file referenced by
// HYDRA_STRATEGY_FILE; every field is optional and overrides the
// corresponding default/env value when present.
type strategyOverrides struct {
	MaxHops             *int     `yaml:"max_hops"`
	MinProfitPercent    *float64 `yaml:"min_profit_percent"`
	MinNotional         *float64 `yaml:"min_notional"`
	SizingRegime        *string  `yaml:"sizing_regime"`
	MaxConcurrentPaths  *int     `yaml:"max_concurrent_paths"`
	DailyLossLimitPct   *float64 `yaml:"daily_loss_limit_pct"`

	MaxPortfolioRisk       *float64 `yaml:"max_portfolio_risk"`
	StopLossPercent        *float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent      *float64 `yaml:"take_profit_percent"`
	MaxConcurrentPositions *int     `yaml:"max_concurrent_positions"`
	MinPositionSize        *float64 `yaml:"min_position_size"`
	TargetRisk             *float64 `yaml:"target_risk"`
}

// Load reads .env (if present), required and optional environment
// variables, and an optional YAML strategy file, producing a fully
// resolved Config. It never prompts and never reads flags.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("BINANCE_API_KEY")
	apiSecret := os.Getenv("BINANCE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}

	cfg := &Config{
		APIKey:    apiKey,
		APISecret: apiSecret,
		Endpoints: exchange.ClientConfig{
			APIKey:      apiKey,
			APISecret:   apiSecret,
			Primary:     EndpointPrimary,
			Alternates:  []string{EndpointAlt1, EndpointAlt2, EndpointAlt3, EndpointAlt4},
			MarketData:  EndpointMarketData,
			HTTPTimeout: 10 * time.Second,
		},
		MaxHops:            getEnvInt("HYDRA_MAX_HOPS", 4),
		MinProfitPercent:   getEnvFloat("HYDRA_MIN_PROFIT_PCT", 0.5),
		MinNotional:        getEnvFloat("HYDRA_MIN_NOTIONAL", 10.0),
		SizingRegime:       SizingRegime(getEnvString("HYDRA_SIZING_REGIME", string(SizingFixed))),
		MaxConcurrentPaths: getEnvInt("HYDRA_MAX_CONCURRENT_PATHS", 5),
		DailyLossLimitPct:  getEnvFloat("HYDRA_DAILY_LOSS_LIMIT_PCT", 5.0),

		MaxPortfolioRisk:       getEnvFloat("HYDRA_MAX_PORTFOLIO_RISK", 0.1),
		StopLossPercent:        getEnvFloat("HYDRA_STOP_LOSS_PCT", 1.0),
		TakeProfitPercent:      getEnvFloat("HYDRA_TAKE_PROFIT_PCT", 1.5),
		MaxConcurrentPositions: getEnvInt("HYDRA_MAX_CONCURRENT_POSITIONS", 5),
		MinPositionSize:        getEnvFloat("HYDRA_MIN_POSITION_SIZE", 10.0),
		TargetRisk:             getEnvFloat("HYDRA_TARGET_RISK", 0.02),

		LogLevel:           getEnvString("HYDRA_LOG_LEVEL", "info"),
		LogFormat:          getEnvString("HYDRA_LOG_FORMAT", "json"),
		DBPath:             getEnvString("HYDRA_DB_PATH", "hydra_memory.db"),
	}

	if path := os.Getenv("HYDRA_STRATEGY_FILE"); path != "" {
		if err := applyStrategyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: strategy file: %w", err)
		}
	}

	return cfg, nil
}

func applyStrategyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var o strategyOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return err
	}
	if o.MaxHops != nil {
		cfg.MaxHops = *o.MaxHops
	}
	if o.MinProfitPercent != nil {
		cfg.MinProfitPercent = *o.MinProfitPercent
	}
	if o.MinNotional != nil {
		cfg.MinNotional = *o.MinNotional
	}
	if o.SizingRegime != nil {
		cfg.SizingRegime = SizingRegime(*o.SizingRegime)
	}
	if o.MaxConcurrentPaths != nil {
		cfg.MaxConcurrentPaths = *o.MaxConcurrentPaths
	}
	if o.DailyLossLimitPct != nil {
		cfg.DailyLossLimitPct = *o.DailyLossLimitPct
	}
	if o.MaxPortfolioRisk != nil {
		cfg.MaxPortfolioRisk = *o.MaxPortfolioRisk
	}
	if o.StopLossPercent != nil {
		cfg.StopLossPercent = *o.StopLossPercent
	}
	if o.TakeProfitPercent != nil {
		cfg.TakeProfitPercent = *o.TakeProfitPercent
	}
	if o.MaxConcurrentPositions != nil {
		cfg.MaxConcurrentPositions = *o.MaxConcurrentPositions
	}
	if o.MinPositionSize != nil {
		cfg.MinPositionSize = *o.MinPositionSize
	}
	if o.TargetRisk != nil {
		cfg.TargetRisk = *o.TargetRisk
	}
	return nil
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
