package risk

import (
	"fmt"
	"sort"

	"github.com/p3dr-dev/hydra/internal/models"
)

const (
	minSharpeForAllocation    = 0.5
	minExecutionProbAlloc     = 0.7
	maxPathsPerStartAsset     = 3
	forwardPathFractionBoost  = 1.5
	returnPathFractionCap     = 0.6
	returnPathFractionDivisor = 2.0
	flatFractionFallback      = 0.2
)

// Allocate groups analyses by their starting asset and builds one
// PortfolioAllocation per group. Within a group, every path is filtered to
// the sharpe_ratio and execution_probability thresholds; the survivors,
// closed cycles and forward paths (left open for the caller to close
// later) alike, are ranked together — forward paths first, then by
// descending expected_profit, then by ascending risk score — and the top
// maxPathsPerStartAsset are kept. A lone survivor gets the whole allocation.
// Allocation fractions are deliberately not normalized to sum to 1 — a
// cautious portfolio can allocate less than its full capital when the
// opportunity set is thin.
func Allocate(analyses []models.PathAnalysis) map[string]models.PortfolioAllocation {
	byStart := make(map[string][]models.PathAnalysis)
	for _, a := range analyses {
		if len(a.Path) == 0 {
			continue
		}
		start := a.Path[0]
		byStart[start] = append(byStart[start], a)
	}

	out := make(map[string]models.PortfolioAllocation, len(byStart))
	for start, group := range byStart {
		out[start] = allocateGroup(group)
	}
	return out
}

func allocateGroup(group []models.PathAnalysis) models.PortfolioAllocation {
	var viable []models.PathAnalysis
	for _, a := range group {
		if a.SharpeRatio >= minSharpeForAllocation && a.ExecutionProbability >= minExecutionProbAlloc {
			viable = append(viable, a)
		}
	}
	if len(viable) == 0 {
		return models.PortfolioAllocation{StrategyLabel: "none"}
	}

	if len(viable) == 1 {
		a := viable[0]
		alloc := models.Allocation{
			Path:               a.Path,
			AllocationFraction: 1.0,
			InvestmentAmount:   a.InitialAmount,
			ExpectedProfit:     a.ExpectedProfit,
			RiskScore:          a.RiskScore,
			ReturnsToStart:     a.Path.ReturnsToStart(),
		}
		return models.PortfolioAllocation{
			Allocations:         []models.Allocation{alloc},
			TotalExpectedProfit: a.ExpectedProfit,
			PortfolioRiskScore:  a.RiskScore,
			StrategyLabel:       "single_path",
		}
	}

	// Forward paths first, then descending expected profit, then ascending
	// risk score — Hydra favors pathfinding over closing the loop.
	sort.SliceStable(viable, func(i, j int) bool {
		iForward, jForward := !viable[i].Path.ReturnsToStart(), !viable[j].Path.ReturnsToStart()
		if iForward != jForward {
			return iForward
		}
		if viable[i].ExpectedProfit != viable[j].ExpectedProfit {
			return viable[i].ExpectedProfit > viable[j].ExpectedProfit
		}
		return viable[i].RiskScore < viable[j].RiskScore
	})

	selected := viable
	if len(selected) > maxPathsPerStartAsset {
		selected = selected[:maxPathsPerStartAsset]
	}

	var allocations []models.Allocation
	var totalProfit, maxRisk float64
	forwardCount := 0
	for _, a := range selected {
		forward := !a.Path.ReturnsToStart()
		fraction := allocationFraction(a)
		if forward {
			fraction *= forwardPathFractionBoost
			forwardCount++
		}
		alloc := models.Allocation{
			Path:               a.Path,
			AllocationFraction: fraction,
			InvestmentAmount:   fraction * a.InitialAmount,
			ExpectedProfit:     a.ExpectedProfit * fraction,
			RiskScore:          a.RiskScore,
			ReturnsToStart:     !forward,
		}
		allocations = append(allocations, alloc)
		totalProfit += alloc.ExpectedProfit
		if a.RiskScore > maxRisk {
			maxRisk = a.RiskScore
		}
	}

	label := fmt.Sprintf("hydra_%d_heads", len(selected))
	if forwardCount > 0 {
		label += "_pathfinding"
	}

	return models.PortfolioAllocation{
		Allocations:          allocations,
		TotalExpectedProfit:  totalProfit,
		PortfolioRiskScore:   maxRisk,
		DiversificationScore: diversification(allocations),
		StrategyLabel:        label,
	}
}

// allocationFraction is min(0.6, sharpe/2) above the min-sharpe threshold,
// a flat 0.2 otherwise.
func allocationFraction(a models.PathAnalysis) float64 {
	if a.SharpeRatio <= minSharpeForAllocation {
		return flatFractionFallback
	}
	fraction := a.SharpeRatio / returnPathFractionDivisor
	if fraction > returnPathFractionCap {
		return returnPathFractionCap
	}
	return fraction
}

func diversification(allocations []models.Allocation) float64 {
	if len(allocations) <= 1 {
		return 0
	}
	assets := make(map[string]struct{})
	for _, a := range allocations {
		for _, asset := range a.Path {
			assets[asset] = struct{}{}
		}
	}
	return float64(len(assets)) / float64(len(allocations)*2)
}
