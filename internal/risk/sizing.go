package risk

import (
	"github.com/shopspring/decimal"

	"github.com/p3dr-dev/hydra/internal/models"
)

// SizingRegime selects how PositionSize scales a base investment amount.
type SizingRegime string

const (
	RegimeFixed      SizingRegime = "fixed"
	RegimeVolatility SizingRegime = "volatility"
	RegimeKelly      SizingRegime = "kelly"
)

const (
	minVolatilityMultiplier = 0.5
	maxVolatilityMultiplier = 2.0
	volatilityBaseline      = 0.05
	kellyFractionCap        = 0.25
	volatilitySizingCap     = 0.5

	// liquidityReferenceVolume24h is the 24h quote volume below which the
	// market is considered thin enough to tighten depth and raise the
	// profit bar; above 10x this, the bar is relaxed slightly.
	liquidityReferenceVolume24h = 1_000_000.0
	thinMarketProfitMultiplier  = 1.2
	deepMarketProfitMultiplier  = 0.9
	minStrategyDepth            = 2

	// investmentDustQty is the "0.0001 of asset A" floor below which the
	// risk-fraction-derived size is discarded in favor of the full free
	// balance.
	investmentDustQty      = 0.0001
	investmentRoundingPlaces = 8
)

// KellyStats is the historical win-rate/average-win/average-loss triple
// the kelly regime sizes against, sourced from executor.History.
type KellyStats struct {
	WinRate float64
	AvgWin  float64
	AvgLoss float64
}

// DefaultKellyStats are the neutral assumptions used before any trade
// history exists: a coin-flip win rate, a 2% average win, a 1% average
// loss.
func DefaultKellyStats() KellyStats {
	return KellyStats{WinRate: 0.5, AvgWin: 0.02, AvgLoss: 0.01}
}

// PositionSize scales baseAmount by the chosen regime:
//
//   - fixed: baseAmount unchanged.
//   - volatility: baseAmount * clamp(0, 0.5, target_risk / path_volatility),
//     the path's mean hop spread standing in for path_volatility.
//   - kelly: baseAmount * clamp(0, 0.25, (p·W − (1−p)·L) / W), using the
//     historical win rate p, average win W and average loss L in stats.
func PositionSize(regime SizingRegime, baseAmount float64, analysis models.PathAnalysis, stats KellyStats, targetRisk float64) float64 {
	switch regime {
	case RegimeVolatility:
		return baseAmount * volatilityPositionFraction(analysis.EstimatedVolatility, targetRisk)
	case RegimeKelly:
		return baseAmount * kellyFraction(stats)
	default:
		return baseAmount
	}
}

// volatilityPositionFraction implements clamp(0, 0.5, target_risk /
// path_volatility). Distinct from DynamicVolatilityMultiplier, which
// scales cycle-wide risk parameters rather than a single position.
func volatilityPositionFraction(pathVolatility, targetRisk float64) float64 {
	if pathVolatility <= 0 {
		return 0
	}
	return clamp(0, volatilitySizingCap, targetRisk/pathVolatility)
}

// DynamicVolatilityMultiplier implements vm = clamp(0.5, 2.0,
// avg_volatility/0.05).
func DynamicVolatilityMultiplier(avgVolatility float64) float64 {
	if avgVolatility <= 0 {
		return minVolatilityMultiplier
	}
	return clamp(minVolatilityMultiplier, maxVolatilityMultiplier, avgVolatility/volatilityBaseline)
}

// kellyFraction implements (p·W − (1−p)·L) / W, capped at 0.25 to avoid
// over-betting on a noisy historical sample.
func kellyFraction(stats KellyStats) float64 {
	if stats.AvgWin <= 0 {
		return 0
	}
	p := clamp(0, 1, stats.WinRate)
	f := (p*stats.AvgWin - (1-p)*stats.AvgLoss) / stats.AvgWin
	return clamp(0, kellyFractionCap, f)
}

// Gates are the risk parameters an allocation must pass before the
// executor is allowed to act on it.
type Gates struct {
	DailyPnL           float64
	DailyLossLimit     float64
	ConcurrentPositions int
	MaxConcurrent      int
	MinPositionAmount  float64
	MaxDrawdownBudget  float64
}

// DynamicParameters derives one analysis cycle's effective strategy and
// risk parameters from market-wide conditions. avgSpreadPct stands in for
// avg_volatility: a wider market-wide spread is read as a choppier market,
// same as the per-path EstimatedVolatility used elsewhere in this package.
// totalVolume24h tightens or relaxes the profit bar and search depth when
// liquidity is thin or abundant.
//
// vm = clamp(0.5, 2.0, avgSpreadPct/0.05) scales MaxPortfolioRisk,
// MaxDailyLoss, StopLossPercent and TakeProfitPercent up, and divides
// MaxConcurrent down — a choppier market gets wider stops and fewer
// concurrent positions.
func DynamicParameters(avgSpreadPct, totalVolume24h float64, baseStrategy models.StrategyParameters, baseRisk models.RiskParameters) (models.StrategyParameters, models.RiskParameters) {
	vm := DynamicVolatilityMultiplier(avgSpreadPct)

	risk := models.RiskParameters{
		MaxPortfolioRisk:  baseRisk.MaxPortfolioRisk * vm,
		MaxDailyLoss:      baseRisk.MaxDailyLoss * vm,
		StopLossPercent:   baseRisk.StopLossPercent * vm,
		TakeProfitPercent: baseRisk.TakeProfitPercent * vm,
		MaxConcurrent:     baseRisk.MaxConcurrent,
	}
	if vm > 0 {
		risk.MaxConcurrent = int(clamp(1, float64(baseRisk.MaxConcurrent), float64(baseRisk.MaxConcurrent)/vm))
	}

	strategy := baseStrategy
	switch {
	case totalVolume24h > 0 && totalVolume24h < liquidityReferenceVolume24h:
		strategy.MinProfitPercent *= thinMarketProfitMultiplier
		if strategy.MaxDepth > minStrategyDepth {
			strategy.MaxDepth--
		}
	case totalVolume24h > liquidityReferenceVolume24h*10:
		strategy.MinProfitPercent *= deepMarketProfitMultiplier
	}

	return strategy, risk
}

// InvestmentSize implements the investment-size rule: balance scaled by the
// smaller of the requested risk fraction r and the dynamic
// max_portfolio_risk, rounded down to 8 decimals. A result below the
// investment-dust floor (0.0001 of asset A) falls back to the full free
// balance; if that is still below minPositionSize, no position is taken.
func InvestmentSize(balance, freeBalance, r, dynamicMaxPortfolioRisk, minPositionSize float64) float64 {
	fraction := r
	if dynamicMaxPortfolioRisk < fraction {
		fraction = dynamicMaxPortfolioRisk
	}

	size := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(fraction)).
		Truncate(investmentRoundingPlaces)

	result, _ := size.Float64()
	if result < investmentDustQty {
		result = freeBalance
	}
	if result < minPositionSize {
		return 0
	}
	return result
}

// Allow reports whether a candidate investment of amount clears the
// daily-loss, concurrency, minimum-size, and drawdown-budget gates.
// A breach of the daily loss limit blocks everything regardless of the
// other checks.
func Allow(g Gates, amount float64, analysis models.PathAnalysis) (bool, string) {
	if g.DailyPnL <= -g.DailyLossLimit {
		return false, "daily loss limit reached"
	}
	if g.ConcurrentPositions >= g.MaxConcurrent {
		return false, "max concurrent positions reached"
	}
	if amount < g.MinPositionAmount {
		return false, "below minimum position size"
	}
	if analysis.MaxDrawdown*amount > g.MaxDrawdownBudget {
		return false, "exceeds max drawdown budget"
	}
	return true, ""
}
