// Package risk scores candidate paths, sizes positions, allocates capital
// across multiple paths sharing a starting asset, and gates proposed
// positions against daily-loss and concentration limits.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/internal/pathengine"
)

const (
	defaultSpread = 0.01
	riskFreeRate  = 0.02
)

// Analyze turns a PathProfit into a PathAnalysis by re-pricing the path
// with filter-adjusted quantities and computing the scoring fields
// described in the risk & allocation design.
func Analyze(view pathengine.MarketView, pp models.PathProfit, filters map[string]models.Filters) models.PathAnalysis {
	hops := pathengine.PathSymbols(view.Graph, pp.Path)
	n := len(pp.Path)

	spreads := make([]float64, 0, len(hops))
	overThreshold := 0
	for _, symbol := range hops {
		s := hopSpread(view, symbol)
		spreads = append(spreads, s)
		if s > 0.02 {
			overThreshold++
		}
	}

	expectedProfit := reprice(view, pp, filters, hops)

	var spreadSum float64
	for _, s := range spreads {
		spreadSum += s
	}
	riskScore := clamp(0, 1, 0.1*float64(n-2)+spreadSum)

	var volatility float64
	if len(spreads) > 0 {
		volatility = spreadSum / float64(len(spreads))
	}

	var sharpe float64
	if volatility > 0 && pp.InitialAmount > 0 {
		sharpe = (expectedProfit - pp.InitialAmount*riskFreeRate/365) / (volatility * pp.InitialAmount)
	}

	maxDrawdown := clamp(0, 0.1, 0.02+0.005*float64(n-1))
	execProb := clamp(0.5, 1.0, 0.95-0.02*float64(n-2)-0.01*float64(overThreshold))

	correlation := 0.6
	if len(uniqueAssets(pp.Path)) <= 2 {
		correlation = 0.3
	}

	return models.PathAnalysis{
		PathProfit:           pp,
		ExpectedProfit:       expectedProfit,
		RiskScore:            riskScore,
		EstimatedVolatility:  volatility,
		SharpeRatio:          sharpe,
		MaxDrawdown:          maxDrawdown,
		ExecutionProbability: execProb,
		CorrelationScore:     correlation,
	}
}

func hopSpread(view pathengine.MarketView, symbol string) float64 {
	if book, ok := view.Books[symbol]; ok && len(book.Bids) > 0 && len(book.Asks) > 0 {
		return spreadOf(book.Asks[0].Price, book.Bids[0].Price)
	}
	if t, ok := view.Tickers[symbol]; ok && t.BestBid > 0 {
		return spreadOf(t.BestAsk, t.BestBid)
	}
	return defaultSpread
}

func spreadOf(ask, bid float64) float64 {
	if bid <= 0 {
		return defaultSpread
	}
	return (ask - bid) / bid
}

func uniqueAssets(path models.Path) map[string]struct{} {
	set := make(map[string]struct{}, len(path))
	for _, a := range path {
		set[a] = struct{}{}
	}
	return set
}

func clamp(min, max, v float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// reprice re-runs the pricing rule across the path, applying the LOT_SIZE
// filter at each hop instead of trading the raw simulated quantity. A hop
// reduced to zero or below its min_qty makes the whole path infeasible,
// reported as zero expected profit.
func reprice(view pathengine.MarketView, pp models.PathProfit, filters map[string]models.Filters, hops []string) float64 {
	amount := pp.InitialAmount
	for i, symbol := range hops {
		if i+1 >= len(pp.Path) {
			break
		}
		from, to := pp.Path[i], pp.Path[i+1]
		if f, ok := filters[symbol]; ok {
			adjusted := AdjustLotSize(decimal.NewFromFloat(amount), f)
			if adjusted.IsZero() || adjusted.LessThan(f.MinQty) {
				return 0
			}
			amount, _ = adjusted.Float64()
		}
		qOut, ok := pathengine.PriceHop(view, from, to, amount)
		if !ok {
			return 0
		}
		amount = qOut
	}
	return amount - pp.InitialAmount
}

// AdjustLotSize applies the LOT_SIZE filter to q: a q below min_qty is
// infeasible and returns zero, a q above max_qty is clamped down to
// max_qty, and the result is snapped down to min_qty plus a whole number
// of steps, using exact decimal arithmetic with ROUND_DOWN.
func AdjustLotSize(q decimal.Decimal, f models.Filters) decimal.Decimal {
	if q.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if f.StepSize.LessThanOrEqual(decimal.Zero) {
		return q
	}

	clamped := q
	if !f.MinQty.IsZero() && clamped.LessThan(f.MinQty) {
		return decimal.Zero
	}
	if !f.MaxQty.IsZero() && clamped.GreaterThan(f.MaxQty) {
		clamped = f.MaxQty
	}

	steps := clamped.Sub(f.MinQty).Div(f.StepSize).Floor()
	adjusted := steps.Mul(f.StepSize).Add(f.MinQty)

	if adjusted.LessThan(f.MinQty) {
		return decimal.Zero
	}
	return adjusted
}
