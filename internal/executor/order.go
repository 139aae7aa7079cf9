// Package executor turns allocator instructions into real orders: one
// hop at a time within a path, several paths in parallel across a bounded
// worker pool, persisting every completed path to the trade history.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p3dr-dev/hydra/internal/exchange"
	"github.com/p3dr-dev/hydra/internal/graph"
	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/internal/risk"
	"github.com/p3dr-dev/hydra/pkg/retry"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

// HopExecutor places a single hop's order: LOT_SIZE adjustment, test-order
// sanity check, then the real order.
type HopExecutor struct {
	client exchange.Client
	graph  *graph.Graph
	logger *utils.Logger

	filtersMu sync.RWMutex
	filters   map[string]models.Filters
}

func NewHopExecutor(client exchange.Client, g *graph.Graph) *HopExecutor {
	return &HopExecutor{client: client, graph: g, logger: utils.L().WithComponent("executor")}
}

// SetFilters replaces the exchange's LOT_SIZE metadata used to adjust a
// hop's quantity before submission. Called once per analysis cycle.
func (h *HopExecutor) SetFilters(filters map[string]models.Filters) {
	h.filtersMu.Lock()
	h.filters = filters
	h.filtersMu.Unlock()
}

func (h *HopExecutor) filterFor(symbol string) (models.Filters, bool) {
	h.filtersMu.RLock()
	defer h.filtersMu.RUnlock()
	f, ok := h.filters[symbol]
	return f, ok
}

// ExecuteHop places a market order moving from asset `from` to `to` using
// qty units of `from`, and reports the actual amount of `to` received.
// The returned ExecutionResult.RequestedQty always mirrors qty; callers
// chain off NextHopAmount, the fill-derived amount net of commission, not
// a fresh simulation.
func (h *HopExecutor) ExecuteHop(ctx context.Context, from, to string, qty float64) models.ExecutionResult {
	start := time.Now()

	symbol, forward, ok := h.graph.ResolveSymbol(from, to)
	if !ok {
		return models.ExecutionResult{
			Success:      false,
			RequestedQty: qty,
			Error:        fmt.Sprintf("no symbol for %s->%s", from, to),
			WallTime:     time.Since(start),
		}
	}

	side := exchange.SideSell
	if !forward {
		side = exchange.SideBuy
	}

	submitQty := qty
	if f, ok := h.filterFor(symbol); ok {
		adjusted := risk.AdjustLotSize(decimal.NewFromFloat(qty), f)
		submitQty, _ = adjusted.Float64()
		if submitQty <= 0 {
			return models.ExecutionResult{
				Success: false, Symbol: symbol, Side: side, RequestedQty: qty,
				Error: "lot size adjustment produced non-positive quantity", WallTime: time.Since(start),
			}
		}
	}

	if err := h.client.TestPlaceOrder(ctx, exchange.OrderParams{
		Symbol: symbol, Side: side, Type: exchange.OrderTypeMarket, Quantity: submitQty,
	}); err != nil {
		return models.ExecutionResult{
			Success: false, Symbol: symbol, Side: side, RequestedQty: qty,
			Error: fmt.Sprintf("test order rejected: %v", err), WallTime: time.Since(start),
		}
	}

	order, err := h.client.PlaceOrder(ctx, exchange.OrderParams{
		Symbol: symbol, Side: side, Type: exchange.OrderTypeMarket, Quantity: submitQty,
	})
	if err != nil {
		h.logger.Warn("order placement failed", utils.Symbol(symbol), utils.Err(err))
		return models.ExecutionResult{
			Success: false, Symbol: symbol, Side: side, RequestedQty: qty,
			Error: err.Error(), WallTime: time.Since(start),
		}
	}

	base, quote, _ := h.graph.Decompose(symbol)
	commissionInQuote, execPrice := h.commissionAndPrice(ctx, order, base, quote)

	return models.ExecutionResult{
		Success:           true,
		Symbol:            symbol,
		Side:              side,
		RequestedQty:      qty,
		OrderID:           order.OrderID,
		ExecutedPrice:     execPrice,
		CommissionInQuote: commissionInQuote,
		NextHopAmount:     outputAfterCommission(order, forward, to),
		WallTime:          time.Since(start),
	}
}

// ExecuteHopWithRetry wraps ExecuteHop with the package's network-error
// retry policy; a rejection on business grounds (insufficient balance, lot
// size) is not retried.
func (h *HopExecutor) ExecuteHopWithRetry(ctx context.Context, from, to string, qty float64) models.ExecutionResult {
	var result models.ExecutionResult
	operation := func() error {
		result = h.ExecuteHop(ctx, from, to, qty)
		if result.Success {
			return nil
		}
		if isRetriableError(result.Error) {
			return fmt.Errorf("%s", result.Error)
		}
		return retry.Permanent(fmt.Errorf("%s", result.Error))
	}

	cfg := retry.NetworkConfig()
	cfg.RetryIf = retry.IsRetryable
	_ = retry.Do(ctx, operation, cfg)
	return result
}

// OutputQty returns the gross quantity of `to` an executed hop produced,
// before subtracting any commission charged in that asset: CumQuoteQty
// for a SELL (forward) leg, ExecutedQty for a BUY leg.
func OutputQty(order *exchange.Order, forward bool) float64 {
	if order == nil {
		return 0
	}
	if forward {
		return order.CumQuoteQty
	}
	return order.ExecutedQty
}

// outputAfterCommission nets OutputQty against commission paid in
// nextAsset, the asset the path is about to carry into its next hop.
// Commission charged in any other asset does not reduce it — that fee
// already left the account in a different balance.
func outputAfterCommission(order *exchange.Order, forward bool, nextAsset string) float64 {
	gross := OutputQty(order, forward)
	if order == nil {
		return gross
	}
	var commissionInNextAsset float64
	for _, f := range order.Fills {
		if f.CommissionAsset == nextAsset {
			commissionInNextAsset += f.Commission
		}
	}
	return gross - commissionInNextAsset
}

// commissionAndPrice returns the order's volume-weighted average fill
// price and its total commission converted to quote-asset terms: added
// as-is when already charged in the quote asset, multiplied by price
// when charged in the base asset, otherwise converted via a
// third-asset/quote ticker lookup (falling back to the raw value, with a
// warning, if that lookup fails).
func (h *HopExecutor) commissionAndPrice(ctx context.Context, order *exchange.Order, base, quote string) (commissionInQuote, price float64) {
	if order == nil || len(order.Fills) == 0 {
		return 0, 0
	}
	var notional, qty float64
	for _, f := range order.Fills {
		notional += f.Price * f.Qty
		qty += f.Qty

		switch f.CommissionAsset {
		case quote, "":
			commissionInQuote += f.Commission
		case base:
			commissionInQuote += f.Commission * f.Price
		default:
			commissionInQuote += h.convertCommissionToQuote(ctx, f.CommissionAsset, quote, f.Commission)
		}
	}
	if qty > 0 {
		price = notional / qty
	}
	return commissionInQuote, price
}

// convertCommissionToQuote looks up asset/quote's spot price to express a
// third-asset commission (e.g. BNB) in quote terms.
func (h *HopExecutor) convertCommissionToQuote(ctx context.Context, asset, quote string, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	symbol := asset + quote
	ticker, err := h.client.TickerPrice(ctx, symbol)
	if err != nil || ticker == nil || ticker.Price <= 0 {
		h.logger.Warn("commission conversion lookup failed, using raw value", utils.Symbol(symbol), utils.Err(err))
		return amount
	}
	return amount * ticker.Price
}

func isRetriableError(msg string) bool {
	patterns := []string{"timeout", "connection refused", "connection reset", "i/o timeout", "EOF", "rate limit"}
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
