package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Request weights follow the exchange's published weight table; these are
// the constants this engine's call sites actually exercise.
const (
	weightExchangeInfo = 10
	weightAccountInfo  = 10
	weightSystemStatus = 1
	weightTradeFees    = 1
	weightTickerPrice  = 1
	weightMyTrades     = 10
	weightOpenOrders   = 3
	weightOrder        = 1
	weightTestOrder    = 1
	weightGetOrder     = 2
)

func (c *BinanceClient) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/exchangeInfo", weight: weightExchangeInfo})
	if err != nil {
		return nil, err
	}
	var raw struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
			Filters    []struct {
				FilterType  string `json:"filterType"`
				MinQty      string `json:"minQty"`
				MaxQty      string `json:"maxQty"`
				StepSize    string `json:"stepSize"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "exchangeInfo", Message: "malformed response", Err: err}
	}

	info := &ExchangeInfo{Symbols: make([]SymbolInfo, 0, len(raw.Symbols))}
	for _, s := range raw.Symbols {
		si := SymbolInfo{Symbol: s.Symbol, BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset, Status: s.Status}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				si.MinQty = parseFloatOrZero(f.MinQty)
				si.MaxQty = parseFloatOrZero(f.MaxQty)
				si.StepSize = parseFloatOrZero(f.StepSize)
			case "MIN_NOTIONAL", "NOTIONAL":
				si.MinNotional = parseFloatOrZero(f.MinNotional)
			}
		}
		info.Symbols = append(info.Symbols, si)
	}
	return info, nil
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func (c *BinanceClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/account", signed: true, weight: weightAccountInfo})
	if err != nil {
		return nil, err
	}
	var raw struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "account", Message: "malformed response", Err: err}
	}
	acc := &AccountInfo{Balances: make([]Balance, 0, len(raw.Balances))}
	for _, b := range raw.Balances {
		acc.Balances = append(acc.Balances, Balance{Asset: b.Asset, Free: parseFloatOrZero(b.Free), Locked: parseFloatOrZero(b.Locked)})
	}
	return acc, nil
}

func (c *BinanceClient) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/sapi/v1/system/status", weight: weightSystemStatus})
	if err != nil {
		return nil, err
	}
	var s SystemStatus
	if err := fastJSON.Unmarshal(body, &s); err != nil {
		return nil, &Error{Endpoint: "system/status", Message: "malformed response", Err: err}
	}
	return &s, nil
}

func (c *BinanceClient) TradeFees(ctx context.Context) (map[string]float64, error) {
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/sapi/v1/asset/tradeFee", signed: true, weight: weightTradeFees})
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol     string `json:"symbol"`
		TakerFee   string `json:"takerCommission"`
	}
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "tradeFee", Message: "malformed response", Err: err}
	}
	fees := make(map[string]float64, len(raw))
	for _, r := range raw {
		fees[r.Symbol] = parseFloatOrZero(r.TakerFee)
	}
	return fees, nil
}

func (c *BinanceClient) TickerPrice(ctx context.Context, symbol string) (*TickerPrice, error) {
	params := url.Values{"symbol": {symbol}}
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/ticker/price", params: params, weight: weightTickerPrice})
	if err != nil {
		return nil, err
	}
	var raw struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "ticker/price", Message: "malformed response", Err: err}
	}
	return &TickerPrice{Symbol: raw.Symbol, Price: parseFloatOrZero(raw.Price)}, nil
}

func (c *BinanceClient) MyTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/myTrades", params: params, signed: true, weight: weightMyTrades})
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol          string `json:"symbol"`
		ID              int64  `json:"id"`
		OrderID         int64  `json:"orderId"`
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
		Time            int64  `json:"time"`
	}
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "myTrades", Message: "malformed response", Err: err}
	}
	trades := make([]Trade, 0, len(raw))
	for _, r := range raw {
		trades = append(trades, Trade{
			Symbol: r.Symbol, ID: r.ID, OrderID: r.OrderID,
			Price: parseFloatOrZero(r.Price), Qty: parseFloatOrZero(r.Qty),
			Commission: parseFloatOrZero(r.Commission), CommissionAsset: r.CommissionAsset,
			Time: msToTime(r.Time),
		})
	}
	return trades, nil
}

func (c *BinanceClient) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/openOrders", params: params, signed: true, weight: weightOpenOrders})
	if err != nil {
		return nil, err
	}
	return decodeOrders(body)
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{"symbol": {symbol}, "orderId": {strconv.FormatInt(orderID, 10)}}
	_, err := c.doRequest(ctx, requestOpts{method: http.MethodDelete, endpoint: "/api/v3/order", params: params, signed: true, weight: weightOrder})
	return err
}

func (c *BinanceClient) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodPost, endpoint: "/api/v3/order", params: orderParamsToValues(params), signed: true, weight: weightOrder})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *BinanceClient) TestPlaceOrder(ctx context.Context, params OrderParams) error {
	_, err := c.doRequest(ctx, requestOpts{method: http.MethodPost, endpoint: "/api/v3/order/test", params: orderParamsToValues(params), signed: true, weight: weightTestOrder})
	return err
}

func (c *BinanceClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*Order, error) {
	params := url.Values{"symbol": {symbol}, "orderId": {strconv.FormatInt(orderID, 10)}}
	body, err := c.doRequest(ctx, requestOpts{method: http.MethodGet, endpoint: "/api/v3/order", params: params, signed: true, weight: weightGetOrder})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func orderParamsToValues(p OrderParams) url.Values {
	v := url.Values{
		"symbol": {p.Symbol},
		"side":   {p.Side},
		"type":   {p.Type},
	}
	if p.Quantity > 0 {
		v.Set("quantity", strconv.FormatFloat(p.Quantity, 'f', -1, 64))
	}
	if p.ClientOrderID != "" {
		v.Set("newClientOrderId", p.ClientOrderID)
	}
	return v
}

func decodeOrders(body []byte) ([]Order, error) {
	var raw []orderWire
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "orders", Message: "malformed response", Err: err}
	}
	out := make([]Order, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toOrder())
	}
	return out, nil
}

func decodeOrder(body []byte) (*Order, error) {
	var raw orderWire
	if err := fastJSON.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Endpoint: "order", Message: "malformed response", Err: err}
	}
	o := raw.toOrder()
	return &o, nil
}

type orderWire struct {
	OrderID           int64  `json:"orderId"`
	ClientOrderID     string `json:"clientOrderId"`
	Symbol            string `json:"symbol"`
	Side              string `json:"side"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	OrigQty           string `json:"origQty"`
	ExecutedQty       string `json:"executedQty"`
	CumulativeQuoteQty string `json:"cummulativeQuoteQty"`
	TransactTime      int64  `json:"transactTime"`
	Fills             []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

func (r orderWire) toOrder() Order {
	o := Order{
		OrderID: r.OrderID, ClientOrderID: r.ClientOrderID, Symbol: r.Symbol,
		Side: r.Side, Type: r.Type, Status: r.Status,
		OrigQty: parseFloatOrZero(r.OrigQty), ExecutedQty: parseFloatOrZero(r.ExecutedQty),
		CumQuoteQty: parseFloatOrZero(r.CumulativeQuoteQty), TransactTime: msToTime(r.TransactTime),
	}
	for _, f := range r.Fills {
		o.Fills = append(o.Fills, Fill{
			Price: parseFloatOrZero(f.Price), Qty: parseFloatOrZero(f.Qty),
			Commission: parseFloatOrZero(f.Commission), CommissionAsset: f.CommissionAsset,
		})
	}
	return o
}
