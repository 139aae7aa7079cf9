package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/internal/pathengine"
)

type stubClient struct{ info *exchange.ExchangeInfo }

func (s *stubClient) ExchangeInfo(ctx context.Context) (*exchange.ExchangeInfo, error) {
	return s.info, nil
}
func (s *stubClient) AccountInfo(ctx context.Context) (*exchange.AccountInfo, error) { return nil, nil }
func (s *stubClient) SystemStatus(ctx context.Context) (*exchange.SystemStatus, error) {
	return nil, nil
}
func (s *stubClient) TradeFees(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (s *stubClient) TickerPrice(ctx context.Context, symbol string) (*exchange.TickerPrice, error) {
	return nil, nil
}
func (s *stubClient) MyTrades(ctx context.Context, symbol string, limit int) ([]exchange.Trade, error) {
	return nil, nil
}
func (s *stubClient) OpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}
func (s *stubClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error { return nil }
func (s *stubClient) PlaceOrder(ctx context.Context, params exchange.OrderParams) (*exchange.Order, error) {
	return nil, nil
}
func (s *stubClient) TestPlaceOrder(ctx context.Context, params exchange.OrderParams) error {
	return nil
}
func (s *stubClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	return nil, nil
}
func (s *stubClient) SubscribeTickerStream(ctx context.Context, callback func(exchange.TickerEvent)) error {
	return nil
}
func (s *stubClient) SubscribeUserData(ctx context.Context, callback func([]byte)) error { return nil }
func (s *stubClient) SubscribeDepth(ctx context.Context, symbol string, callback func(exchange.DepthEvent)) error {
	return nil
}
func (s *stubClient) UnsubscribeDepth(symbol string) {}
func (s *stubClient) Close() error                   { return nil }

func triangleGraph() *graph.Graph {
	g := graph.New()
	g.Build(context.Background(), &stubClient{info: &exchange.ExchangeInfo{Symbols: []exchange.SymbolInfo{
		{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", Status: "TRADING"},
		{Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT", Status: "TRADING"},
		{Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC", Status: "TRADING"},
	}}})
	return g
}

func bookView(g *graph.Graph, btcBid, ethAsk, ethBtcBid float64) pathengine.MarketView {
	now := time.Now()
	return pathengine.MarketView{
		Graph: g,
		Fees:  map[string]float64{"BTCUSDT": 0.001, "ETHUSDT": 0.001, "ETHBTC": 0.001},
		Books: map[string]models.OrderBookSnapshot{
			"BTCUSDT": {Symbol: "BTCUSDT", Bids: []models.BookLevel{{Price: btcBid, Qty: 10}}, Asks: []models.BookLevel{{Price: btcBid * 1.0001, Qty: 10}}, UpdatedAt: now},
			"ETHUSDT": {Symbol: "ETHUSDT", Bids: []models.BookLevel{{Price: ethAsk * 0.9999, Qty: 10}}, Asks: []models.BookLevel{{Price: ethAsk, Qty: 10}}, UpdatedAt: now},
			"ETHBTC":  {Symbol: "ETHBTC", Bids: []models.BookLevel{{Price: ethBtcBid, Qty: 10}}, Asks: []models.BookLevel{{Price: ethBtcBid * 1.0001, Qty: 10}}, UpdatedAt: now},
		},
	}
}

func TestAnalyze_ProfitableCycle(t *testing.T) {
	g := triangleGraph()
	view := bookView(g, 40200, 1990, 0.0502)
	pp := models.PathProfit{
		Path:          models.Path{"USDT", "ETH", "BTC", "USDT"},
		InitialAmount: 1000,
		FinalAmount:   1010,
		Profit:        10,
		ProfitPercent: 1.0,
	}

	analysis := Analyze(view, pp, nil)
	if analysis.RiskScore < 0 || analysis.RiskScore > 1 {
		t.Errorf("risk score out of range: %v", analysis.RiskScore)
	}
	if analysis.ExecutionProbability < 0.5 || analysis.ExecutionProbability > 1 {
		t.Errorf("execution probability out of range: %v", analysis.ExecutionProbability)
	}
	if analysis.ExpectedProfit <= 0 {
		t.Errorf("expected positive expected_profit for a profitable cycle, got %v", analysis.ExpectedProfit)
	}
}

func TestAdjustLotSize(t *testing.T) {
	filters := models.Filters{
		MinQty:   decimal.NewFromFloat(0.001),
		MaxQty:   decimal.NewFromFloat(100),
		StepSize: decimal.NewFromFloat(0.001),
	}

	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact step", 0.005, 0.005},
		{"needs rounding down", 0.0057, 0.005},
		{"below min", 0.0001, 0},
		{"above max clamps down to step", 150, 100},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := AdjustLotSize(decimal.NewFromFloat(c.in), filters)
			want := decimal.NewFromFloat(c.want)
			if !got.Equal(want) {
				t.Errorf("AdjustLotSize(%v) = %v, want %v", c.in, got, want)
			}
		})
	}
}

func TestAdjustLotSize_ZeroStepReturnsInput(t *testing.T) {
	f := models.Filters{}
	got := AdjustLotSize(decimal.NewFromFloat(5), f)
	if !got.Equal(decimal.NewFromFloat(5)) {
		t.Errorf("expected passthrough, got %v", got)
	}
}

func TestAllocate_GroupsByStartAssetAndCapsTopThree(t *testing.T) {
	mk := func(start string, profit, sharpe, execProb float64) models.PathAnalysis {
		return models.PathAnalysis{
			PathProfit: models.PathProfit{
				Path:          models.Path{start, "X", start},
				InitialAmount: 1000,
			},
			ExpectedProfit:       profit,
			SharpeRatio:          sharpe,
			ExecutionProbability: execProb,
		}
	}

	analyses := []models.PathAnalysis{
		mk("USDT", 10, 1.0, 0.9),
		mk("USDT", 20, 1.2, 0.9),
		mk("USDT", 5, 0.5, 0.9),
		mk("USDT", 1, 0.1, 0.9), // below sharpe threshold, excluded
		mk("BTC", 3, 1.0, 0.9),
	}

	result := Allocate(analyses)

	usdt, ok := result["USDT"]
	if !ok {
		t.Fatal("expected USDT group")
	}
	if len(usdt.Allocations) != 3 {
		t.Errorf("expected top 3 USDT allocations, got %d", len(usdt.Allocations))
	}
	if usdt.Allocations[0].RiskScore != 0 || usdt.Allocations[0].AllocationFraction <= 0 {
		t.Errorf("unexpected first allocation: %+v", usdt.Allocations[0])
	}
	// profit=20/sharpe=1.2 sorts first (highest expected_profit); its
	// allocation_fraction is min(0.6, 1.2/2) = 0.6, so the stored
	// expected_profit is scaled to 20*0.6 = 12.
	if usdt.Allocations[0].ExpectedProfit != 12 {
		t.Errorf("expected scaled expected_profit 12 for the top path, got %v", usdt.Allocations[0].ExpectedProfit)
	}

	if _, ok := result["BTC"]; !ok {
		t.Error("expected BTC group present")
	}
}

func TestAllocate_ExcludesBelowExecutionProbability(t *testing.T) {
	analyses := []models.PathAnalysis{
		{
			PathProfit:           models.PathProfit{Path: models.Path{"USDT", "X", "USDT"}, InitialAmount: 1000},
			SharpeRatio:          1.0,
			ExecutionProbability: 0.3,
		},
	}
	result := Allocate(analyses)
	if len(result["USDT"].Allocations) != 0 {
		t.Errorf("expected no allocations below execution probability threshold, got %v", result["USDT"].Allocations)
	}
}

func TestPositionSize_Fixed(t *testing.T) {
	got := PositionSize(RegimeFixed, 100, models.PathAnalysis{}, DefaultKellyStats(), 0.02)
	if got != 100 {
		t.Errorf("fixed regime should pass through base amount, got %v", got)
	}
}

func TestPositionSize_Volatility(t *testing.T) {
	analysis := models.PathAnalysis{EstimatedVolatility: 0.1}
	got := PositionSize(RegimeVolatility, 100, analysis, DefaultKellyStats(), 0.02)
	want := 100 * 0.2 // targetRisk/volatility = 0.02/0.1, below the 0.5 cap
	if got != want {
		t.Errorf("PositionSize(volatility) = %v, want %v", got, want)
	}
}

func TestDynamicVolatilityMultiplier_Clamps(t *testing.T) {
	if got := DynamicVolatilityMultiplier(10); got != maxVolatilityMultiplier {
		t.Errorf("expected clamp to max, got %v", got)
	}
	if got := DynamicVolatilityMultiplier(0); got != minVolatilityMultiplier {
		t.Errorf("expected clamp to min, got %v", got)
	}
}

func TestPositionSize_Kelly(t *testing.T) {
	analysis := models.PathAnalysis{
		PathProfit:           models.PathProfit{InitialAmount: 1000},
		ExpectedProfit:       50,
		ExecutionProbability: 0.8,
	}
	got := PositionSize(RegimeKelly, 100, analysis, DefaultKellyStats(), 0.02)
	if got <= 0 || got > 100*kellyFractionCap {
		t.Errorf("kelly position size out of expected range: %v", got)
	}
}

func TestAllow_DailyLossLimitBlocksRegardlessOfOtherChecks(t *testing.T) {
	gates := Gates{DailyPnL: -600, DailyLossLimit: 500, MaxConcurrent: 5, MinPositionAmount: 1}
	ok, reason := Allow(gates, 100, models.PathAnalysis{})
	if ok {
		t.Error("expected daily loss limit to block")
	}
	if reason == "" {
		t.Error("expected a reason string")
	}
}

func TestAllow_PassesWithinLimits(t *testing.T) {
	gates := Gates{DailyPnL: 0, DailyLossLimit: 500, MaxConcurrent: 5, MinPositionAmount: 1, MaxDrawdownBudget: 1000}
	ok, _ := Allow(gates, 100, models.PathAnalysis{MaxDrawdown: 0.05})
	if !ok {
		t.Error("expected gates to pass")
	}
}

func TestAllow_BelowMinimumPositionSize(t *testing.T) {
	gates := Gates{DailyLossLimit: 500, MaxConcurrent: 5, MinPositionAmount: 50}
	ok, _ := Allow(gates, 10, models.PathAnalysis{})
	if ok {
		t.Error("expected min position size gate to block")
	}
}

func TestDynamicParameters_ScalesRiskByVolatilityMultiplier(t *testing.T) {
	baseRisk := models.RiskParameters{
		MaxPortfolioRisk:  0.1,
		MaxDailyLoss:      0.05,
		StopLossPercent:   1.0,
		TakeProfitPercent: 1.5,
		MaxConcurrent:     5,
	}
	baseStrategy := models.StrategyParameters{MaxDepth: 4, MinProfitPercent: 0.5}

	strategy, risk := DynamicParameters(0.1, 5_000_000, baseStrategy, baseRisk)

	wantVM := 2.0 // clamp(0.5, 2.0, 0.1/0.05) = 2.0
	if risk.MaxPortfolioRisk != baseRisk.MaxPortfolioRisk*wantVM {
		t.Errorf("MaxPortfolioRisk = %v, want %v", risk.MaxPortfolioRisk, baseRisk.MaxPortfolioRisk*wantVM)
	}
	if risk.MaxDailyLoss != baseRisk.MaxDailyLoss*wantVM {
		t.Errorf("MaxDailyLoss = %v, want %v", risk.MaxDailyLoss, baseRisk.MaxDailyLoss*wantVM)
	}
	if risk.MaxConcurrent >= baseRisk.MaxConcurrent {
		t.Errorf("expected MaxConcurrent to shrink with a choppy market, got %d", risk.MaxConcurrent)
	}
	if strategy.MaxDepth != baseStrategy.MaxDepth {
		t.Errorf("expected MaxDepth unchanged in a liquid market, got %d", strategy.MaxDepth)
	}
}

func TestDynamicParameters_ThinMarketRaisesProfitBarAndTrimsDepth(t *testing.T) {
	baseRisk := models.RiskParameters{MaxPortfolioRisk: 0.1, MaxConcurrent: 5}
	baseStrategy := models.StrategyParameters{MaxDepth: 4, MinProfitPercent: 0.5}

	strategy, _ := DynamicParameters(0.01, 1000, baseStrategy, baseRisk)

	if strategy.MinProfitPercent <= baseStrategy.MinProfitPercent {
		t.Errorf("expected a higher profit bar in a thin market, got %v", strategy.MinProfitPercent)
	}
	if strategy.MaxDepth != baseStrategy.MaxDepth-1 {
		t.Errorf("expected depth trimmed by one in a thin market, got %d", strategy.MaxDepth)
	}
}

func TestInvestmentSize_UsesSmallerOfRequestedAndDynamicRisk(t *testing.T) {
	got := InvestmentSize(10000, 10000, 0.2, 0.1, 1)
	want := 1000.0 // 10000 * min(0.2, 0.1)
	if got != want {
		t.Errorf("InvestmentSize = %v, want %v", got, want)
	}
}

func TestInvestmentSize_FallsBackToFreeBalanceBelowDust(t *testing.T) {
	got := InvestmentSize(0.00005, 50, 1.0, 1.0, 1)
	if got != 50 {
		t.Errorf("expected fallback to free balance 50, got %v", got)
	}
}

func TestInvestmentSize_ReturnsZeroBelowMinPositionSize(t *testing.T) {
	got := InvestmentSize(0.00005, 0.5, 1.0, 1.0, 10)
	if got != 0 {
		t.Errorf("expected 0 below min position size, got %v", got)
	}
}
