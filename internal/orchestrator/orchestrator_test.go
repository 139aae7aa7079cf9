package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
)

type fakeClient struct {
	info *exchange.ExchangeInfo
}

func (f *fakeClient) ExchangeInfo(ctx context.Context) (*exchange.ExchangeInfo, error) {
	return f.info, nil
}
func (f *fakeClient) AccountInfo(ctx context.Context) (*exchange.AccountInfo, error) { return nil, nil }
func (f *fakeClient) SystemStatus(ctx context.Context) (*exchange.SystemStatus, error) {
	return nil, nil
}
func (f *fakeClient) TradeFees(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (f *fakeClient) TickerPrice(ctx context.Context, symbol string) (*exchange.TickerPrice, error) {
	return nil, nil
}
func (f *fakeClient) MyTrades(ctx context.Context, symbol string, limit int) ([]exchange.Trade, error) {
	return nil, nil
}
func (f *fakeClient) OpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}
func (f *fakeClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error { return nil }
func (f *fakeClient) PlaceOrder(ctx context.Context, params exchange.OrderParams) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeClient) TestPlaceOrder(ctx context.Context, params exchange.OrderParams) error {
	return nil
}
func (f *fakeClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeClient) SubscribeTickerStream(ctx context.Context, callback func(exchange.TickerEvent)) error {
	return nil
}
func (f *fakeClient) SubscribeUserData(ctx context.Context, callback func([]byte)) error { return nil }
func (f *fakeClient) SubscribeDepth(ctx context.Context, symbol string, callback func(exchange.DepthEvent)) error {
	return nil
}
func (f *fakeClient) UnsubscribeDepth(symbol string) {}
func (f *fakeClient) Close() error                   { return nil }

func sampleInfo() *exchange.ExchangeInfo {
	return &exchange.ExchangeInfo{Symbols: []exchange.SymbolInfo{
		{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", Status: "TRADING", MinQty: 0.0001, MaxQty: 100, StepSize: 0.0001, MinNotional: 10},
		{Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT", Status: "TRADING", MinQty: 0.001, MaxQty: 1000, StepSize: 0.001, MinNotional: 10},
		{Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC", Status: "TRADING", MinQty: 0.001, MaxQty: 1000, StepSize: 0.001, MinNotional: 0.0001},
	}}
}

func sampleGraph() *graph.Graph {
	g := graph.New()
	g.Build(context.Background(), &fakeClient{info: sampleInfo()})
	return g
}

func TestTopVolumeAssets_KeepsOnlyTopNByQuoteVolume(t *testing.T) {
	g := sampleGraph()
	tickers := map[string]models.TickerSnapshot{
		"BTCUSDT": {Symbol: "BTCUSDT", QuoteVolume: 5_000_000},
		"ETHUSDT": {Symbol: "ETHUSDT", QuoteVolume: 1_000_000},
		"ETHBTC":  {Symbol: "ETHBTC", QuoteVolume: 10},
	}

	assets := topVolumeAssets(tickers, 1, g)

	if _, ok := assets["BTC"]; !ok {
		t.Error("expected BTC from the highest-volume symbol")
	}
	if _, ok := assets["ETH"]; ok {
		t.Error("did not expect ETH, its symbol was outside the top-1 window")
	}
}

func TestSelectCandidateAssets_IntersectsFreeGraphAndMajor(t *testing.T) {
	g := sampleGraph()
	balances := []exchange.Balance{
		{Asset: "BTC", Free: 0.5},
		{Asset: "ETH", Free: 0},
		{Asset: "DOGE", Free: 100},
	}
	major := map[string]struct{}{"BTC": {}}

	candidates := selectCandidateAssets(balances, g, major)

	if len(candidates) != 1 || candidates[0] != "BTC" {
		t.Fatalf("candidates = %v, want [BTC]", candidates)
	}
}

func TestSelectCandidateAssets_FallsBackWhenIntersectionEmpty(t *testing.T) {
	g := sampleGraph()
	balances := []exchange.Balance{
		{Asset: "BTC", Free: 0.5},
		{Asset: "DOGE", Free: 100},
	}
	major := map[string]struct{}{"USDT": {}}

	candidates := selectCandidateAssets(balances, g, major)

	if len(candidates) != 1 || candidates[0] != "BTC" {
		t.Fatalf("candidates = %v, want fallback [BTC] (DOGE is not in the graph)", candidates)
	}
}

func TestFreeBalanceOf(t *testing.T) {
	balances := []exchange.Balance{{Asset: "BTC", Free: 1.5}, {Asset: "ETH", Free: 2}}
	if got := freeBalanceOf(balances, "ETH"); got != 2 {
		t.Fatalf("freeBalanceOf(ETH) = %v, want 2", got)
	}
	if got := freeBalanceOf(balances, "XRP"); got != 0 {
		t.Fatalf("freeBalanceOf(XRP) = %v, want 0", got)
	}
}

func TestMarketMetrics_AveragesSpreadAndSumsVolume(t *testing.T) {
	tickers := map[string]models.TickerSnapshot{
		"BTCUSDT": {BestBid: 100, BestAsk: 101, QuoteVolume: 1000},
		"ETHUSDT": {BestBid: 50, BestAsk: 51, QuoteVolume: 2000},
	}

	avgSpread, totalVolume := marketMetrics(tickers)

	if totalVolume != 3000 {
		t.Fatalf("totalVolume = %v, want 3000", totalVolume)
	}
	wantSpread := ((1.0 / 100) + (1.0 / 50)) / 2
	if diff := avgSpread - wantSpread; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("avgSpread = %v, want %v", avgSpread, wantSpread)
	}
}

func TestMarketMetrics_EmptyTickersReturnsZero(t *testing.T) {
	avgSpread, totalVolume := marketMetrics(map[string]models.TickerSnapshot{})
	if avgSpread != 0 || totalVolume != 0 {
		t.Fatalf("got (%v, %v), want (0, 0)", avgSpread, totalVolume)
	}
}

func TestBuildFiltersFromInfo_ConvertsEverySymbol(t *testing.T) {
	filters := buildFiltersFromInfo(sampleInfo())

	f, ok := filters["BTCUSDT"]
	if !ok {
		t.Fatal("expected BTCUSDT in filters map")
	}
	if got, _ := f.MinNotional.Float64(); got != 10 {
		t.Fatalf("MinNotional = %v, want 10", got)
	}
	if len(filters) != 3 {
		t.Fatalf("len(filters) = %d, want 3", len(filters))
	}
}

func TestOrchestrator_RecordExecutionWindowCapsAtMax(t *testing.T) {
	o := &Orchestrator{}
	for i := 0; i < maxExecutionWindow+10; i++ {
		o.recordExecutionWindow(time.Millisecond)
	}
	if len(o.executionWindow) != maxExecutionWindow {
		t.Fatalf("len(executionWindow) = %d, want %d", len(o.executionWindow), maxExecutionWindow)
	}
}
