// Package models holds the data types shared across the path engine, risk
// allocator, executor, and orchestrator: symbols, paths, allocations,
// positions, and execution results.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filters are a symbol's LOT_SIZE and notional constraints, carried as
// exact decimals since quantity arithmetic must never use floats.
type Filters struct {
	MinQty      decimal.Decimal `json:"min_qty" db:"min_qty"`
	MaxQty      decimal.Decimal `json:"max_qty" db:"max_qty"`
	StepSize    decimal.Decimal `json:"step_size" db:"step_size"`
	MinNotional decimal.Decimal `json:"min_notional" db:"min_notional"`
}

// Symbol is an ordered (base, quote) pair with its trading status and
// filters, derived from exchange metadata.
type Symbol struct {
	Name    string  `json:"name" db:"name"`
	Base    string  `json:"base" db:"base"`
	Quote   string  `json:"quote" db:"quote"`
	Status  string  `json:"status" db:"status"`
	Filters Filters `json:"filters" db:"-"`
	TakerFee decimal.Decimal `json:"taker_fee" db:"taker_fee"`
}

// TickerSnapshot is the best bid/ask and 24h quote volume for one symbol,
// copy-on-read by consumers.
type TickerSnapshot struct {
	Symbol      string    `json:"symbol"`
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	QuoteVolume float64   `json:"quote_volume"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookLevel is one (price, quantity) order book entry.
type BookLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// OrderBookSnapshot is the sorted bid/ask levels for one symbol. Absent
// from the orchestrator's map means the path engine must fall back to the
// ticker for that hop.
type OrderBookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Path is an ordered sequence of assets of length >= 2.
type Path []string

// ReturnsToStart reports whether the path begins and ends on the same
// asset (a triangular / cyclic route).
func (p Path) ReturnsToStart() bool {
	return len(p) >= 2 && p[0] == p[len(p)-1]
}

// String renders the path as "A->B->C" for logging.
func (p Path) String() string {
	s := ""
	for i, a := range p {
		if i > 0 {
			s += "->"
		}
		s += a
	}
	return s
}

// PathProfit is a Path priced through the market at a point in time.
type PathProfit struct {
	Path           Path    `json:"path"`
	InitialAmount  float64 `json:"initial_amount"`
	FinalAmount    float64 `json:"final_amount"`
	Profit         float64 `json:"profit"`
	ProfitPercent  float64 `json:"profit_percent"`
}

// PathAnalysis enriches a PathProfit with risk and execution-quality
// scoring used by the allocator.
type PathAnalysis struct {
	PathProfit
	ExpectedProfit        float64 `json:"expected_profit"`
	RiskScore             float64 `json:"risk_score"`
	EstimatedVolatility   float64 `json:"estimated_volatility"`
	SharpeRatio           float64 `json:"sharpe_ratio"`
	MaxDrawdown           float64 `json:"max_drawdown"`
	ExecutionProbability  float64 `json:"execution_probability"`
	CorrelationScore      float64 `json:"correlation_score"`
}

// Allocation is one path's share of a portfolio allocation.
type Allocation struct {
	Path               Path    `json:"path"`
	AllocationFraction float64 `json:"allocation_fraction"`
	InvestmentAmount   float64 `json:"investment_amount"`
	ExpectedProfit     float64 `json:"expected_profit"`
	RiskScore          float64 `json:"risk_score"`
	ReturnsToStart     bool    `json:"returns_to_start"`
}

// PortfolioAllocation is the allocator's output for one starting asset.
type PortfolioAllocation struct {
	Allocations          []Allocation `json:"allocations"`
	TotalExpectedProfit  float64      `json:"total_expected_profit"`
	PortfolioRiskScore   float64      `json:"portfolio_risk_score"`
	DiversificationScore float64      `json:"diversification_score"`
	StrategyLabel        string       `json:"strategy_label"`
}

// PositionStatus values.
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// Position is an open or closed trade record for one executed path.
type Position struct {
	ID          int64     `json:"id" db:"id"`
	Path        Path      `json:"path" db:"-"`
	Size        float64   `json:"size" db:"size"`
	EntryPrice  float64   `json:"entry_price" db:"entry_price"`
	EntryTime   time.Time `json:"entry_time" db:"entry_time"`
	StopLoss    float64   `json:"stop_loss" db:"stop_loss"`
	TakeProfit  float64   `json:"take_profit" db:"take_profit"`
	RealizedPnL float64   `json:"realized_pnl" db:"realized_pnl"`
	Status      string    `json:"status" db:"status"`
}

// ExecutionResult is the outcome of a single hop's order.
type ExecutionResult struct {
	Success           bool          `json:"success"`
	Symbol            string        `json:"symbol"`
	Side              string        `json:"side"`
	RequestedQty      float64       `json:"requested_qty"`
	OrderID           int64         `json:"order_id,omitempty"`
	ExecutedPrice     float64       `json:"executed_price,omitempty"`
	CommissionInQuote float64       `json:"commission_in_quote,omitempty"`
	// NextHopAmount is the actual amount of the next-hop asset this order
	// produced: the order's fill-derived ExecutedQty/CumQuoteQty, net of
	// commission when the fee was charged in that same asset. The path
	// executor chains this value forward, never a fresh simulation.
	NextHopAmount float64       `json:"next_hop_amount,omitempty"`
	Error         string        `json:"error,omitempty"`
	WallTime      time.Duration `json:"wall_time"`
}

// PathExecutionResult is the outcome of executing a whole multi-hop path.
type PathExecutionResult struct {
	Path              Path              `json:"path"`
	Success           bool              `json:"success"`
	InitialAmount     float64           `json:"initial_amount"`
	FinalAmount       float64           `json:"final_amount"`
	ProfitLoss        float64           `json:"profit_loss"`
	Hops              []ExecutionResult `json:"hops"`
	TotalCommission   float64           `json:"total_commission"`
	WallTime          time.Duration     `json:"wall_time"`
	PredictedProfitPct float64          `json:"predicted_profit_percent"`
}

// TradeInstruction is what the allocator hands to the executor: a path to
// run and the amount of the starting asset to commit.
type TradeInstruction struct {
	Path          Path
	InitialAmount float64
	PredictedPct  float64
	Regime        string
}

// StrategyParameters are the dynamic, market-condition-scaled knobs the
// risk layer derives for one analysis cycle.
type StrategyParameters struct {
	MaxDepth          int
	MinProfitPercent  float64
}

// RiskParameters are the dynamic risk knobs for one analysis cycle.
type RiskParameters struct {
	MaxPortfolioRisk float64
	MaxDailyLoss     float64
	StopLossPercent  float64
	TakeProfitPercent float64
	MaxConcurrent    int
}

// TradingStats is the aggregate snapshot pushed to the Observer after
// every analysis cycle.
type TradingStats struct {
	TotalTrades      int     `json:"total_trades"`
	SuccessfulTrades int     `json:"successful_trades"`
	FailedTrades     int     `json:"failed_trades"`
	TotalProfit      float64 `json:"total_profit"`
	SuccessRate      float64 `json:"success_rate"`
	AvgProfit        float64 `json:"avg_profit"`
	ActiveTickers    int     `json:"active_tickers"`
	MarketVolatility float64 `json:"market_volatility"`
	MarketVolume     float64 `json:"market_volume"`
}
