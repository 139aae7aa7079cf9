// Package exchange provides the signed REST and streaming client for the
// single spot exchange this engine trades against: endpoint failover,
// request-weight budgeting, clock sync, and auto-reconnecting streams.
package exchange

import (
	"context"
	"time"
)

// Client is the full surface C1 exposes to the rest of the engine.
type Client interface {
	ExchangeInfo(ctx context.Context) (*ExchangeInfo, error)
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	SystemStatus(ctx context.Context) (*SystemStatus, error)
	TradeFees(ctx context.Context) (map[string]float64, error)
	TickerPrice(ctx context.Context, symbol string) (*TickerPrice, error)
	MyTrades(ctx context.Context, symbol string, limit int) ([]Trade, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	PlaceOrder(ctx context.Context, params OrderParams) (*Order, error)
	TestPlaceOrder(ctx context.Context, params OrderParams) error
	GetOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)

	SubscribeTickerStream(ctx context.Context, callback func(TickerEvent)) error
	SubscribeUserData(ctx context.Context, callback func([]byte)) error
	SubscribeDepth(ctx context.Context, symbol string, callback func(DepthEvent)) error
	UnsubscribeDepth(symbol string)

	Close() error
}

// ExchangeInfo is the exchangeInfo response: symbol metadata and filters.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo describes one tradable symbol and its LOT_SIZE/notional filters.
type SymbolInfo struct {
	Symbol     string  `json:"symbol"`
	BaseAsset  string  `json:"baseAsset"`
	QuoteAsset string  `json:"quoteAsset"`
	Status     string  `json:"status"`
	MinQty     float64 `json:"minQty"`
	MaxQty     float64 `json:"maxQty"`
	StepSize   float64 `json:"stepSize"`
	MinNotional float64 `json:"minNotional"`
}

// SymbolTrading is the status value PairGraph and the Executor require
// before treating a symbol as usable.
const SymbolTrading = "TRADING"

// AccountInfo holds free/locked balances per asset.
type AccountInfo struct {
	Balances []Balance `json:"balances"`
}

// Balance is one asset's free and locked amount.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// SystemStatus mirrors the exchange's system/status endpoint. Status 0
// means normal operation; anything else means the orchestrator must skip
// the current analysis cycle.
type SystemStatus struct {
	Status int `json:"status"`
}

// TickerPrice is a single REST ticker-price lookup (used for
// third-asset-to-quote commission conversion, not the streaming feed).
type TickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// TickerEvent is one decoded entry from the !ticker@arr stream.
type TickerEvent struct {
	Symbol      string
	BestBid     float64
	BestAsk     float64
	QuoteVolume float64
}

// DepthEvent is one decoded partial-depth update.
type DepthEvent struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// PriceLevel is one (price, quantity) book entry.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// OrderSide values accepted by PlaceOrder.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderType values accepted by PlaceOrder. Only MARKET is used by this
// engine; LIMIT is not implemented by the client, per spec non-goals.
const OrderTypeMarket = "MARKET"

// OrderParams are the inputs to PlaceOrder/TestPlaceOrder.
type OrderParams struct {
	Symbol        string
	Side          string
	Type          string
	Quantity      float64
	ClientOrderID string
}

// Order is an exchange order as returned by place/get/open-orders.
type Order struct {
	OrderID       int64     `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	OrigQty       float64   `json:"origQty"`
	ExecutedQty   float64   `json:"executedQty"`
	CumQuoteQty   float64   `json:"cummulativeQuoteQty"`
	Fills         []Fill    `json:"fills"`
	TransactTime  time.Time `json:"transactTime"`
}

// Fill is one partial-fill line of an order.
type Fill struct {
	Price           float64 `json:"price"`
	Qty             float64 `json:"qty"`
	Commission      float64 `json:"commission"`
	CommissionAsset string  `json:"commissionAsset"`
}

// Trade is a historical fill returned by MyTrades.
type Trade struct {
	Symbol          string    `json:"symbol"`
	ID              int64     `json:"id"`
	OrderID         int64     `json:"orderId"`
	Price           float64   `json:"price"`
	Qty             float64   `json:"qty"`
	Commission      float64   `json:"commission"`
	CommissionAsset string    `json:"commissionAsset"`
	Time            time.Time `json:"time"`
}

// Order status constants mirroring the exchange's own vocabulary.
const (
	OrderStatusNew      = "NEW"
	OrderStatusFilled   = "FILLED"
	OrderStatusPartial  = "PARTIALLY_FILLED"
	OrderStatusCancelled = "CANCELED"
	OrderStatusRejected = "REJECTED"
)
