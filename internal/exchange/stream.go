package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/p3dr-dev/hydra/pkg/utils"
)

const streamReconnectDelay = 5 * time.Second

// SubscribeTickerStream starts (or idempotently re-uses) the all-market
// ticker array stream. callback is invoked once per decoded ticker entry.
func (c *BinanceClient) SubscribeTickerStream(ctx context.Context, callback func(TickerEvent)) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.tickerStream != nil {
		return nil
	}

	mgr := NewWSReconnectManager("binance-ticker", marketWSURL(c.cfg.MarketData)+"/ws/!ticker@arr", DefaultWSReconnectConfig())
	mgr.SetOnMessage(func(raw []byte) {
		var entries []struct {
			Symbol      string `json:"s"`
			BestBid     string `json:"b"`
			BestAsk     string `json:"a"`
			QuoteVolume string `json:"q"`
		}
		if err := fastJSON.Unmarshal(raw, &entries); err != nil {
			c.logger.Warn("malformed ticker batch", utils.Err(err))
			return
		}
		for _, e := range entries {
			callback(TickerEvent{
				Symbol:      e.Symbol,
				BestBid:     parseFloatOrZero(e.BestBid),
				BestAsk:     parseFloatOrZero(e.BestAsk),
				QuoteVolume: parseFloatOrZero(e.QuoteVolume),
			})
		}
	})
	c.withReconnectOnClose(mgr)
	if err := mgr.Connect(); err != nil {
		return fmt.Errorf("exchange: ticker stream: %w", err)
	}
	c.tickerStream = mgr
	return nil
}

// SubscribeUserData starts the account/order-update stream at the
// market-data host's /ws/userdata path. No listen key is requested and no
// authentication handshake is installed on the connection. Raw messages
// are handed to callback undecoded; the orchestrator only logs them.
func (c *BinanceClient) SubscribeUserData(ctx context.Context, callback func([]byte)) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.userStream != nil {
		return nil
	}

	mgr := NewWSReconnectManager("binance-userdata", marketWSURL(c.cfg.MarketData)+"/ws/userdata", DefaultWSReconnectConfig())
	mgr.SetOnMessage(callback)
	c.withReconnectOnClose(mgr)
	if err := mgr.Connect(); err != nil {
		return fmt.Errorf("exchange: user-data stream: %w", err)
	}
	c.userStream = mgr
	return nil
}

// SubscribeDepth starts a per-symbol partial-depth stream at level 5 /
// 1000ms cadence. Idempotent: calling it again for a symbol already
// subscribed is a no-op.
func (c *BinanceClient) SubscribeDepth(ctx context.Context, symbol string, callback func(DepthEvent)) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if _, ok := c.depthStreams[symbol]; ok {
		return nil
	}

	stream := fmt.Sprintf("/ws/%s@depth5@1000ms", lowerSymbol(symbol))
	mgr := NewWSReconnectManager("binance-depth-"+symbol, marketWSURL(c.cfg.MarketData)+stream, DefaultWSReconnectConfig())
	mgr.SetOnMessage(func(raw []byte) {
		var msg struct {
			Event string     `json:"e"`
			Bids  [][]string `json:"b"`
			Asks  [][]string `json:"a"`
		}
		if err := fastJSON.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("malformed depth update", utils.Symbol(symbol), utils.Err(err))
			return
		}
		callback(DepthEvent{Symbol: symbol, Bids: toPriceLevels(msg.Bids), Asks: toPriceLevels(msg.Asks)})
	})
	c.withReconnectOnClose(mgr)
	if err := mgr.Connect(); err != nil {
		return fmt.Errorf("exchange: depth stream %s: %w", symbol, err)
	}
	c.depthStreams[symbol] = mgr
	return nil
}

// UnsubscribeDepth stops and releases a symbol's depth subscription, if any.
func (c *BinanceClient) UnsubscribeDepth(symbol string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if mgr, ok := c.depthStreams[symbol]; ok {
		mgr.Close()
		delete(c.depthStreams, symbol)
	}
}

// withReconnectOnClose installs a disconnect handler that holds off the
// manager's own reconnect loop for streamReconnectDelay before it redials
// with the same callback. Once shutdown was requested the handler returns
// at once; Close then stops the manager so no reconnect follows.
func (c *BinanceClient) withReconnectOnClose(mgr *WSReconnectManager) {
	mgr.SetOnDisconnect(func(err error) {
		if c.shuttingDown.Load() {
			return
		}
		c.logger.Warn("stream disconnected, will re-establish", utils.Err(err))
		time.Sleep(streamReconnectDelay)
	})
}

func toPriceLevels(raw [][]string) []PriceLevel {
	levels := make([]PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		levels = append(levels, PriceLevel{Price: parseFloatOrZero(pair[0]), Qty: parseFloatOrZero(pair[1])})
	}
	return levels
}

func lowerSymbol(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func marketWSURL(marketDataHost string) string {
	// marketDataHost is already the provider's dedicated wss:// streaming
	// host from config, so it is returned unchanged.
	return marketDataHost
}
