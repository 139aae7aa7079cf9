package orchestrator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p3dr-dev/hydra/internal/config"
	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/internal/observer"
	"github.com/p3dr-dev/hydra/internal/pathengine"
	"github.com/p3dr-dev/hydra/internal/risk"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

const topVolumeSymbolCount = 20

// runCycle is the nine-step analysis cycle spec.md's Orchestrator runs
// every cyclesPerTickerBatch ticker messages.
func (o *Orchestrator) runCycle(ctx context.Context) {
	start := time.Now()
	defer func() { cycleLatency.Observe(float64(time.Since(start).Milliseconds())) }()

	// 1. Snapshot tickers and order books under the lock.
	tickers := o.snapshotTickers()
	books := o.snapshotBooks()
	fees := o.snapshotFees()

	// 2. Abort if exchange system status != 0.
	status, err := o.client.SystemStatus(ctx)
	if err != nil {
		o.logger.Warn("system status check failed, skipping cycle", utils.Err(err))
		recordCycleOutcome("skipped_system_status")
		return
	}
	if status.Status != 0 {
		o.logger.Warn("exchange system status degraded, skipping cycle", utils.Int("status", status.Status))
		recordCycleOutcome("skipped_system_status")
		return
	}

	// 3. Compute market-wide avg_spread_pct and total_volume_24h; ask the
	// risk layer for strategy parameters.
	avgSpreadPct, totalVolume24h := marketMetrics(tickers)
	baseStrategy := models.StrategyParameters{MaxDepth: o.cfg.MaxHops, MinProfitPercent: o.cfg.MinProfitPercent}
	baseRisk := models.RiskParameters{
		MaxPortfolioRisk:  o.cfg.MaxPortfolioRisk,
		MaxDailyLoss:      o.cfg.DailyLossLimitPct / 100,
		StopLossPercent:   o.cfg.StopLossPercent,
		TakeProfitPercent: o.cfg.TakeProfitPercent,
		MaxConcurrent:     o.cfg.MaxConcurrentPositions,
	}
	strategyParams, riskParams := risk.DynamicParameters(avgSpreadPct, totalVolume24h, baseStrategy, baseRisk)

	// 4. Identify the top-20 symbols by quote volume; derive major assets.
	majorAssets := topVolumeAssets(tickers, topVolumeSymbolCount, o.graph)

	// 5. From account balances, select candidate starting assets.
	account, err := o.client.AccountInfo(ctx)
	if err != nil {
		o.logger.Warn("account info fetch failed, skipping cycle", utils.Err(err))
		recordCycleOutcome("skipped_system_status")
		return
	}
	candidates := selectCandidateAssets(account.Balances, o.graph, majorAssets)
	if len(candidates) == 0 {
		o.logger.Debug("no candidate starting assets this cycle")
		recordCycleOutcome("skipped_no_candidates")
		return
	}

	info, err := o.client.ExchangeInfo(ctx)
	if err != nil {
		o.logger.Warn("exchange info fetch failed, skipping cycle", utils.Err(err))
		recordCycleOutcome("skipped_system_status")
		return
	}
	filters := buildFiltersFromInfo(info)
	o.pathExec.SetFilters(filters)

	view := pathengine.MarketView{Graph: o.graph, Tickers: tickers, Books: books, Fees: fees}
	engineParams := pathengine.StrategyParameters{
		MaxDepth:         strategyParams.MaxDepth,
		MinProfitPercent: strategyParams.MinProfitPercent,
		MinNotional:      o.cfg.MinNotional,
	}

	// 6. For each selected start asset, run the Path Engine.
	var allProfits []models.PathProfit
	for _, asset := range candidates {
		amount := freeBalanceOf(account.Balances, asset)
		t0 := time.Now()
		profits := pathengine.FindProfitablePaths(view, asset, amount, engineParams)
		pathEngineLatency.WithLabelValues(asset).Observe(float64(time.Since(t0).Milliseconds()))
		allProfits = append(allProfits, profits...)
	}
	pathsFound.Add(float64(len(allProfits)))

	if len(allProfits) == 0 {
		o.publishCycleSummary(observer.CycleSummary{
			PathsFound: 0, AvgSpreadPct: avgSpreadPct, TotalVolume24h: totalVolume24h,
			GraphAssets: len(o.graph.Assets()),
		})
		recordCycleOutcome("completed")
		return
	}

	// 7. Compute the union of required symbols; diff subscriptions.
	required := make(map[string]struct{})
	for _, pp := range allProfits {
		for _, symbol := range pathengine.PathSymbols(o.graph, pp.Path) {
			required[symbol] = struct{}{}
		}
	}
	if o.reconcileDepthSubscriptions(ctx, required) {
		time.Sleep(depthWarmup)
	}

	// Re-snapshot books: the warm-up sleep lets fresh depth snapshots land.
	books = o.snapshotBooks()
	view.Books = books

	analyses := make([]models.PathAnalysis, 0, len(allProfits))
	analysisByPath := make(map[string]models.PathAnalysis, len(allProfits))
	for _, pp := range allProfits {
		a := risk.Analyze(view, pp, filters)
		analyses = append(analyses, a)
		analysisByPath[pp.Path.String()] = a
	}

	// 8. Ask the Risk & Allocator for trade instructions; hand to the Executor.
	allocations := risk.Allocate(analyses)
	instructions := o.buildInstructions(ctx, allocations, analysisByPath, account.Balances, riskParams)
	pathsAllocated.Add(float64(countAllocations(allocations)))
	pathsDispatched.Add(float64(len(instructions)))

	var results []models.PathExecutionResult
	if len(instructions) > 0 {
		results = o.pathExec.Dispatch(ctx, instructions)
	}

	// 9. Update aggregate trading statistics and publish them.
	o.updateStats(tickers, results)
	o.publishCycleSummary(observer.CycleSummary{
		PathsFound:      len(allProfits),
		PathsAllocated:  countAllocations(allocations),
		PathsDispatched: len(instructions),
		AvgSpreadPct:    avgSpreadPct,
		TotalVolume24h:  totalVolume24h,
		GraphAssets:     len(o.graph.Assets()),
	})
	recordCycleOutcome("completed")
}

// buildInstructions turns the allocator's per-start-asset allocations into
// concrete TradeInstructions, sizing each with the configured regime and
// gating it against daily-loss/concurrency/min-size/drawdown limits.
//
// The sizing regime is asked for the *fraction* of capital to risk (by
// calling PositionSize with a base amount of 1), then InvestmentSize turns
// that fraction into an actual amount of the starting asset, applying the
// dynamic max_portfolio_risk cap and the dust/min-position-size fallback.
func (o *Orchestrator) buildInstructions(ctx context.Context, allocations map[string]models.PortfolioAllocation, analysisByPath map[string]models.PathAnalysis, balances []exchange.Balance, riskParams models.RiskParameters) []models.TradeInstruction {
	o.statsMu.Lock()
	dailyPnL := o.dailyPnL
	openPositions := o.openPositions
	o.statsMu.Unlock()

	kellyStats := o.kellyStats(ctx)

	var instructions []models.TradeInstruction
	for startAsset, alloc := range allocations {
		freeBalance := freeBalanceOf(balances, startAsset)
		if freeBalance <= 0 {
			continue
		}

		for _, a := range alloc.Allocations {
			analysis, ok := analysisByPath[a.Path.String()]
			if !ok {
				continue
			}

			riskFraction := risk.PositionSize(risk.SizingRegime(o.cfg.SizingRegime), 1.0, analysis, kellyStats, o.cfg.TargetRisk)
			amount := risk.InvestmentSize(freeBalance, freeBalance, riskFraction, riskParams.MaxPortfolioRisk, o.cfg.MinPositionSize)
			if amount <= 0 {
				continue
			}

			gates := risk.Gates{
				DailyPnL:            dailyPnL,
				DailyLossLimit:      riskParams.MaxDailyLoss * freeBalance,
				ConcurrentPositions: openPositions + len(instructions),
				MaxConcurrent:       riskParams.MaxConcurrent,
				MinPositionAmount:   o.cfg.MinPositionSize,
				MaxDrawdownBudget:   riskParams.MaxPortfolioRisk * freeBalance,
			}
			if ok, reason := risk.Allow(gates, amount, analysis); !ok {
				o.logger.Debug("trade instruction rejected by risk gate", utils.String("reason", reason), utils.String("path", a.Path.String()))
				continue
			}

			instructions = append(instructions, models.TradeInstruction{
				Path:          a.Path,
				InitialAmount: amount,
				PredictedPct:  analysis.ProfitPercent,
				Regime:        string(o.cfg.SizingRegime),
			})
		}
	}
	return instructions
}

// kellyStats returns the trade history's observed win rate, average win and
// average loss for the kelly sizing regime, falling back to
// risk.DefaultKellyStats when no history is available or the regime is not
// kelly (the other regimes never look at these values).
func (o *Orchestrator) kellyStats(ctx context.Context) risk.KellyStats {
	stats := risk.DefaultKellyStats()
	if o.cfg.SizingRegime != config.SizingKelly || o.pathExec == nil || o.pathExec.History() == nil {
		return stats
	}
	winRate, avgWin, avgLoss, err := o.pathExec.History().KellyStats(ctx)
	if err != nil {
		o.logger.Warn("kelly stats lookup failed, using defaults", utils.Err(err))
		return stats
	}
	return risk.KellyStats{WinRate: winRate, AvgWin: avgWin, AvgLoss: avgLoss}
}

func countAllocations(allocations map[string]models.PortfolioAllocation) int {
	n := 0
	for _, a := range allocations {
		n += len(a.Allocations)
	}
	return n
}

// reconcileDepthSubscriptions subscribes to symbols in required that are
// not yet subscribed and unsubscribes from ones no longer needed. It
// reports whether any new subscription was added, so the caller knows
// whether to wait out the depth-snapshot warm-up.
func (o *Orchestrator) reconcileDepthSubscriptions(ctx context.Context, required map[string]struct{}) bool {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	added := false
	for symbol := range required {
		if _, ok := o.subscribed[symbol]; ok {
			continue
		}
		if err := o.client.SubscribeDepth(ctx, symbol, o.handleDepth); err != nil {
			o.logger.Warn("depth subscription failed", utils.Symbol(symbol), utils.Err(err))
			continue
		}
		o.subscribed[symbol] = struct{}{}
		added = true
	}

	for symbol := range o.subscribed {
		if _, ok := required[symbol]; ok {
			continue
		}
		o.client.UnsubscribeDepth(symbol)
		delete(o.subscribed, symbol)
	}

	depthSubscriptions.Set(float64(len(o.subscribed)))
	return added
}

func (o *Orchestrator) updateStats(tickers map[string]models.TickerSnapshot, results []models.PathExecutionResult) {
	o.statsMu.Lock()
	for _, r := range results {
		o.stats.TotalTrades++
		if r.Success {
			o.stats.SuccessfulTrades++
		} else {
			o.stats.FailedTrades++
		}
		o.stats.TotalProfit += r.ProfitLoss
		o.dailyPnL += r.ProfitLoss
		o.executionWindow = append(o.executionWindow, r.WallTime)
		if len(o.executionWindow) > maxExecutionWindow {
			o.executionWindow = o.executionWindow[len(o.executionWindow)-maxExecutionWindow:]
		}
		recordExecutedPath(r.ProfitLoss)
	}
	if o.stats.TotalTrades > 0 {
		o.stats.SuccessRate = float64(o.stats.SuccessfulTrades) / float64(o.stats.TotalTrades)
		o.stats.AvgProfit = o.stats.TotalProfit / float64(o.stats.TotalTrades)
	}
	avgSpread, totalVolume := marketMetrics(tickers)
	o.stats.ActiveTickers = len(tickers)
	o.stats.MarketVolatility = avgSpread
	o.stats.MarketVolume = totalVolume
	snapshot := o.stats
	o.statsMu.Unlock()

	if o.obs != nil {
		o.obs.UpdateStats(snapshot)
	}
}

func (o *Orchestrator) publishCycleSummary(summary observer.CycleSummary) {
	if o.obs != nil {
		o.obs.BroadcastCycleSummary(summary)
	}
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
