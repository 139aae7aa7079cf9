// Package graph builds and serves the undirected trading-pair graph: which
// assets are reachable from which in one hop, and how a symbol name
// decomposes into (base, quote).
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

const (
	buildMaxRetries  = 3
	buildRetryDelay  = 10 * time.Second
)

// symbolDecomposition is the (base, quote) pair a symbol name resolves to.
type symbolDecomposition struct {
	Base, Quote string
}

// Graph is a read-mostly, atomically-swapped snapshot of the pair graph.
// Readers use the accessors below, which read under a read lock and return
// fresh copies; a rebuild swaps in new maps rather than mutating the old
// ones.
type Graph struct {
	mu        sync.RWMutex
	adjacency map[string]map[string]struct{}
	symbols   map[string]symbolDecomposition
	logger    *utils.Logger
}

// New returns an empty graph, ready for Build.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string]map[string]struct{}),
		symbols:   make(map[string]symbolDecomposition),
		logger:    utils.L().WithComponent("graph"),
	}
}

// Build fetches exchangeInfo and reconstructs the graph atomically. On
// malformed or absent metadata it retries up to buildMaxRetries times with
// a 10s back-off; after final failure the graph is left at its previous
// (possibly empty) state and a hard warning is logged, but Build does not
// return an error to the caller — the orchestrator is expected to keep
// running with a stale or empty graph rather than terminate.
func (g *Graph) Build(ctx context.Context, client exchange.Client) {
	var lastErr error
	for attempt := 0; attempt < buildMaxRetries; attempt++ {
		info, err := client.ExchangeInfo(ctx)
		if err == nil && len(info.Symbols) > 0 {
			g.swap(info.Symbols)
			return
		}
		lastErr = err
		if attempt < buildMaxRetries-1 {
			select {
			case <-time.After(buildRetryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
	g.logger.Error("pair graph build failed after retries, continuing with previous graph", utils.Err(lastErr))
}

func (g *Graph) swap(symbols []exchange.SymbolInfo) {
	adjacency := make(map[string]map[string]struct{})
	decomp := make(map[string]symbolDecomposition)

	addEdge := func(a, b string) {
		if adjacency[a] == nil {
			adjacency[a] = make(map[string]struct{})
		}
		adjacency[a][b] = struct{}{}
	}

	for _, s := range symbols {
		if s.Status != exchange.SymbolTrading || s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		decomp[s.Symbol] = symbolDecomposition{Base: s.BaseAsset, Quote: s.QuoteAsset}
		addEdge(s.BaseAsset, s.QuoteAsset)
		addEdge(s.QuoteAsset, s.BaseAsset)
	}

	g.mu.Lock()
	g.adjacency = adjacency
	g.symbols = decomp
	g.mu.Unlock()
}

// Neighbors returns the assets reachable in one hop from asset. The
// returned slice is a fresh copy, safe to range over without locking.
func (g *Graph) Neighbors(asset string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.adjacency[asset]
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

// HasAsset reports whether asset appears anywhere in the graph.
func (g *Graph) HasAsset(asset string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.adjacency[asset]
	return ok
}

// ResolveSymbol finds the symbol name connecting base and quote in either
// direction, reporting which direction matched:
//   - forward: a symbol named base+quote exists (sell base for quote)
//   - reverse: a symbol named quote+base exists (buy base with quote)
func (g *Graph) ResolveSymbol(base, quote string) (name string, forward bool, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for name, d := range g.symbols {
		if d.Base == base && d.Quote == quote {
			return name, true, true
		}
		if d.Base == quote && d.Quote == base {
			return name, false, true
		}
	}
	return "", false, false
}

// Decompose returns the (base, quote) pair a symbol name resolves to.
func (g *Graph) Decompose(symbol string) (base, quote string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.symbols[symbol]
	return d.Base, d.Quote, ok
}

// Assets returns every asset currently present in the graph.
func (g *Graph) Assets() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.adjacency))
	for a := range g.adjacency {
		out = append(out, a)
	}
	return out
}

// String renders basic graph stats, useful for startup/rebuild logging.
func (g *Graph) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fmt.Sprintf("graph(assets=%d, symbols=%d)", len(g.adjacency), len(g.symbols))
}
