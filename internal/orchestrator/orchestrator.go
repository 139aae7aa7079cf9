// Package orchestrator runs the top-level analysis cycle: it owns the
// streamed ticker/order-book/account state, triggers the path engine and
// risk allocator every few ticker messages, hands the results to the
// executor, and republishes aggregate stats to the observer. It is the
// direct descendant of the teacher's Engine.Run event loop, trading the
// teacher's shard-worker/position-event-loop pattern for a single
// ticker-driven analysis cycle since this domain has one stream of truth
// instead of per-pair state machines.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p3dr-dev/hydra/internal/config"
	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/executor"
	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/internal/observer"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

const (
	// cyclesPerTickerBatch is how many ticker messages accumulate before
	// one analysis cycle runs.
	cyclesPerTickerBatch = 10

	// graphRebuildTicks is how many one-second ticks elapse between pair
	// graph rebuilds (~6h at 1 tick/s).
	graphRebuildTicks = 21600

	depthWarmup = 2 * time.Second

	maxExecutionWindow = 100
)

// Orchestrator is C6: the process that owns the live market view and
// drives the path engine, risk allocator, and executor every analysis
// cycle.
type Orchestrator struct {
	cfg      *config.Config
	client   exchange.Client
	graph    *graph.Graph
	pathExec *executor.PathExecutor
	obs      *observer.Server
	logger   *utils.Logger

	tickersMu sync.RWMutex
	tickers   map[string]models.TickerSnapshot

	booksMu sync.RWMutex
	books   map[string]models.OrderBookSnapshot

	feesMu sync.RWMutex
	fees   map[string]float64

	subMu      sync.Mutex
	subscribed map[string]struct{}

	tickerMsgCount uint64
	secondTicks    uint64
	cycleRunning   atomic.Bool

	statsMu         sync.Mutex
	stats           models.TradingStats
	executionWindow []time.Duration
	dailyPnL        float64
	openPositions   int
}

// New builds an Orchestrator. graph and pathExec are expected to already
// be constructed (but the graph need not be built yet — Run builds it).
func New(cfg *config.Config, client exchange.Client, g *graph.Graph, pathExec *executor.PathExecutor, obs *observer.Server) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		client:     client,
		graph:      g,
		pathExec:   pathExec,
		obs:        obs,
		logger:     utils.L().WithComponent("orchestrator"),
		tickers:    make(map[string]models.TickerSnapshot),
		books:      make(map[string]models.OrderBookSnapshot),
		fees:       make(map[string]float64),
		subscribed: make(map[string]struct{}),
	}
}

// Run builds the pair graph, brings up the ticker and user-data streams,
// and blocks until ctx is cancelled. It returns an error only when the
// initial subscription to either stream fails; later stream drops are
// logged and redialled by the exchange client's own reconnect manager,
// and Run returns nil once shutdown is requested.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.graph.Build(ctx, o.client)
	graphAssets.Set(float64(len(o.graph.Assets())))

	if fees, err := o.client.TradeFees(ctx); err == nil {
		o.feesMu.Lock()
		o.fees = fees
		o.feesMu.Unlock()
	} else {
		o.logger.Warn("failed to fetch trade fees, falling back to default taker fee", utils.Err(err))
	}

	if err := o.client.SubscribeTickerStream(ctx, o.handleTicker); err != nil {
		return err
	}
	if err := o.client.SubscribeUserData(ctx, o.handleUserData); err != nil {
		return err
	}

	rebuildTicker := time.NewTicker(time.Second)
	defer rebuildTicker.Stop()

	o.logger.Info("orchestrator started", utils.Int("graph_assets", len(o.graph.Assets())))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator shutting down")
			return nil
		case <-rebuildTicker.C:
			o.onSecondTick(ctx)
		}
	}
}

func (o *Orchestrator) onSecondTick(ctx context.Context) {
	n := atomic.AddUint64(&o.secondTicks, 1)
	if n%graphRebuildTicks != 0 {
		return
	}
	o.logger.Info("rebuilding pair graph")
	o.graph.Build(ctx, o.client)
	graphAssets.Set(float64(len(o.graph.Assets())))
	graphRebuildsTotal.Inc()
}

func (o *Orchestrator) handleTicker(e exchange.TickerEvent) {
	if e.Symbol == "" {
		return
	}
	o.tickersMu.Lock()
	o.tickers[e.Symbol] = models.TickerSnapshot{
		Symbol:      e.Symbol,
		BestBid:     e.BestBid,
		BestAsk:     e.BestAsk,
		QuoteVolume: e.QuoteVolume,
		UpdatedAt:   time.Now(),
	}
	o.tickersMu.Unlock()
	tickerMessagesTotal.Inc()

	if atomic.AddUint64(&o.tickerMsgCount, 1)%cyclesPerTickerBatch != 0 {
		return
	}
	if !o.cycleRunning.CompareAndSwap(false, true) {
		o.logger.Debug("skipping cycle trigger, previous cycle still running")
		return
	}
	go func() {
		defer o.cycleRunning.Store(false)
		o.runCycle(context.Background())
	}()
}

// handleUserData only logs stream traffic; balances are re-read from
// AccountInfo at the top of every cycle rather than reconstructed from
// execution reports, since the exchange's account snapshot is already
// authoritative and this engine has no open-order book to reconcile
// against (every position closes or aborts within one Dispatch call).
func (o *Orchestrator) handleUserData(raw []byte) {
	o.logger.Debug("user-data event received", utils.Int("bytes", len(raw)))
}

func (o *Orchestrator) handleDepth(e exchange.DepthEvent) {
	bids := make([]models.BookLevel, 0, len(e.Bids))
	for _, l := range e.Bids {
		bids = append(bids, models.BookLevel{Price: l.Price, Qty: l.Qty})
	}
	asks := make([]models.BookLevel, 0, len(e.Asks))
	for _, l := range e.Asks {
		asks = append(asks, models.BookLevel{Price: l.Price, Qty: l.Qty})
	}

	o.booksMu.Lock()
	o.books[e.Symbol] = models.OrderBookSnapshot{Symbol: e.Symbol, Bids: bids, Asks: asks, UpdatedAt: time.Now()}
	o.booksMu.Unlock()
}

func (o *Orchestrator) snapshotTickers() map[string]models.TickerSnapshot {
	o.tickersMu.RLock()
	defer o.tickersMu.RUnlock()
	out := make(map[string]models.TickerSnapshot, len(o.tickers))
	for k, v := range o.tickers {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) snapshotBooks() map[string]models.OrderBookSnapshot {
	o.booksMu.RLock()
	defer o.booksMu.RUnlock()
	out := make(map[string]models.OrderBookSnapshot, len(o.books))
	for k, v := range o.books {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) snapshotFees() map[string]float64 {
	o.feesMu.RLock()
	defer o.feesMu.RUnlock()
	out := make(map[string]float64, len(o.fees))
	for k, v := range o.fees {
		out[k] = v
	}
	return out
}

// topVolumeAssets returns the base/quote assets of the top n symbols by
// 24h quote volume.
func topVolumeAssets(tickers map[string]models.TickerSnapshot, n int, g *graph.Graph) map[string]struct{} {
	type entry struct {
		symbol string
		volume float64
	}
	entries := make([]entry, 0, len(tickers))
	for symbol, t := range tickers {
		entries = append(entries, entry{symbol: symbol, volume: t.QuoteVolume})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].volume > entries[j].volume })
	if len(entries) > n {
		entries = entries[:n]
	}

	assets := make(map[string]struct{})
	for _, e := range entries {
		if base, quote, ok := g.Decompose(e.symbol); ok {
			assets[base] = struct{}{}
			assets[quote] = struct{}{}
		}
	}
	return assets
}

// selectCandidateAssets narrows the tradable-asset universe to assets the
// account holds a free balance of, that also appear in the graph,
// intersected with majorAssets. If the intersection is empty, it falls
// back to the unfiltered free-and-in-graph set so a quiet top-20 window
// never stalls the whole engine.
func selectCandidateAssets(balances []exchange.Balance, g *graph.Graph, majorAssets map[string]struct{}) []string {
	var freeInGraph []string
	for _, b := range balances {
		if b.Free > 0 && g.HasAsset(b.Asset) {
			freeInGraph = append(freeInGraph, b.Asset)
		}
	}

	var candidates []string
	for _, asset := range freeInGraph {
		if _, ok := majorAssets[asset]; ok {
			candidates = append(candidates, asset)
		}
	}
	if len(candidates) == 0 {
		return freeInGraph
	}
	return candidates
}

func freeBalanceOf(balances []exchange.Balance, asset string) float64 {
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return 0
}

func marketMetrics(tickers map[string]models.TickerSnapshot) (avgSpreadPct, totalVolume24h float64) {
	if len(tickers) == 0 {
		return 0, 0
	}
	var spreadSum float64
	for _, t := range tickers {
		if t.BestBid > 0 {
			spreadSum += (t.BestAsk - t.BestBid) / t.BestBid
		}
		totalVolume24h += t.QuoteVolume
	}
	avgSpreadPct = spreadSum / float64(len(tickers))
	return avgSpreadPct, totalVolume24h
}

func buildFiltersFromInfo(info *exchange.ExchangeInfo) map[string]models.Filters {
	out := make(map[string]models.Filters, len(info.Symbols))
	for _, s := range info.Symbols {
		out[s.Symbol] = models.Filters{
			MinQty:      decimalFromFloat(s.MinQty),
			MaxQty:      decimalFromFloat(s.MaxQty),
			StepSize:    decimalFromFloat(s.StepSize),
			MinNotional: decimalFromFloat(s.MinNotional),
		}
	}
	return out
}

func (o *Orchestrator) recordExecutionWindow(d time.Duration) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.executionWindow = append(o.executionWindow, d)
	if len(o.executionWindow) > maxExecutionWindow {
		o.executionWindow = o.executionWindow[len(o.executionWindow)-maxExecutionWindow:]
	}
}
