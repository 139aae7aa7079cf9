// Package pathengine enumerates simple paths through the pair graph,
// prices each one against live ticker and order-book snapshots, and ranks
// the profitable ones.
package pathengine

import (
	"fmt"
	"sort"

	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
)

const maxExpandedStates = 100000

// defaultFee is charged when a symbol's taker fee is unknown.
const defaultFee = 0.001

// MarketView is the read-only snapshot the orchestrator hands down for one
// analysis cycle: everything the path engine needs to price hops, with no
// back-reference to the orchestrator itself.
type MarketView struct {
	Graph   *graph.Graph
	Tickers map[string]models.TickerSnapshot
	Books   map[string]models.OrderBookSnapshot
	Fees    map[string]float64 // symbol -> taker fee
}

// StrategyParameters bound the search.
type StrategyParameters struct {
	MaxDepth         int
	MinProfitPercent float64
	MinNotional      float64
}

// FindProfitablePaths enumerates paths from startAsset of length
// 2..MaxDepth using a breadth-first traversal over (asset, depth) pairs,
// pricing candidates via PriceHop composed across the path, and returns
// those exceeding MinProfitPercent sorted by descending profit percent
// (stable for ties). Each (asset, depth) state is visited once: of several
// paths reaching the same asset at the same depth, only the first one
// generated is priced and extended, and neighbours come in the graph's map
// order, so which path that is is not fixed. Assets may repeat in a path.
func FindProfitablePaths(view MarketView, startAsset string, amount float64, params StrategyParameters) []models.PathProfit {
	if amount < params.MinNotional || !view.Graph.HasAsset(startAsset) {
		return nil
	}
	if params.MaxDepth < 2 {
		params.MaxDepth = 2
	}

	type state struct {
		path   models.Path
		amount float64
		depth  int
	}

	visited := make(map[string]bool)
	visited["0|"+startAsset] = true

	queue := []state{{path: models.Path{startAsset}, amount: amount, depth: 0}}
	var results []models.PathProfit
	expanded := 0

	for len(queue) > 0 && expanded < maxExpandedStates {
		cur := queue[0]
		queue = queue[1:]
		expanded++

		if cur.depth >= params.MaxDepth-1 {
			continue
		}

		last := cur.path[len(cur.path)-1]
		for _, next := range view.Graph.Neighbors(last) {
			key := stateKey(cur.depth+1, next)
			if visited[key] {
				continue
			}
			visited[key] = true

			qOut, ok := PriceHop(view, last, next, cur.amount)
			if !ok {
				continue
			}

			childPath := append(append(models.Path{}, cur.path...), next)
			profitPct := profitPercent(amount, qOut)
			if profitPct > params.MinProfitPercent && len(childPath) >= 2 {
				results = append(results, models.PathProfit{
					Path:          childPath,
					InitialAmount: amount,
					FinalAmount:   qOut,
					Profit:        qOut - amount,
					ProfitPercent: profitPct,
				})
				if len(results) >= maxExpandedStates {
					return sortedByProfit(results)
				}
			}

			queue = append(queue, state{path: childPath, amount: qOut, depth: cur.depth + 1})
		}
	}

	return sortedByProfit(results)
}

func stateKey(depth int, asset string) string {
	return fmt.Sprintf("%d|%s", depth, asset)
}

func profitPercent(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

func sortedByProfit(results []models.PathProfit) []models.PathProfit {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ProfitPercent > results[j].ProfitPercent
	})
	return results
}

// PriceHop prices one hop from X to Y with amount q, resolving the symbol
// through the graph in either orientation: XY (forward: sell base for
// quote) or YX (reverse: buy base with quote). Returns (0, false) if no
// symbol resolves, an order book/ticker is unusable, or the hop's notional
// is not positive; no per-symbol minimum notional is applied here.
func PriceHop(view MarketView, x, y string, q float64) (float64, bool) {
	name, forward, ok := view.Graph.ResolveSymbol(x, y)
	if !ok {
		return 0, false
	}

	fee := view.Fees[name]
	if fee <= 0 {
		fee = defaultFee
	}

	bid, ask, hasBook := bestBidAsk(view, name)
	if !hasBook {
		return 0, false
	}

	var qOut float64
	if forward {
		qOut = q * bid * (1 - fee)
	} else {
		if ask <= 0 {
			return 0, false
		}
		qOut = (q / ask) * (1 - fee)
	}

	if !passesMinNotional(view, name, forward, q, bid) {
		return 0, false
	}

	return qOut, true
}

func bestBidAsk(view MarketView, symbol string) (bid, ask float64, ok bool) {
	if book, present := view.Books[symbol]; present && len(book.Bids) > 0 && len(book.Asks) > 0 {
		return book.Bids[0].Price, book.Asks[0].Price, true
	}
	if ticker, present := view.Tickers[symbol]; present && ticker.BestBid > 0 && ticker.BestAsk > 0 {
		return ticker.BestBid, ticker.BestAsk, true
	}
	return 0, 0, false
}

func passesMinNotional(view MarketView, symbol string, forward bool, q, bid float64) bool {
	// Per-symbol MinNotional is not part of MarketView (it lives on
	// exchange.SymbolInfo and models.Filters), so the only check here is
	// that the hop's notional is positive.
	notional := q
	if forward {
		notional = q * bid
	}
	return notional > 0
}

// PathSymbols returns, in hop order, the resolved symbol name for every
// hop in path, looked up in the pair graph g; a hop with no resolvable
// symbol is skipped. This is the pure function filling the role the
// source's monkey-patched get_path_symbols played: it takes the graph
// explicitly rather than closing over engine state.
func PathSymbols(g *graph.Graph, path models.Path) []string {
	symbols := make([]string, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		name, _, ok := g.ResolveSymbol(path[i], path[i+1])
		if !ok {
			continue
		}
		symbols = append(symbols, name)
	}
	return symbols
}
