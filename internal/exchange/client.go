package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/p3dr-dev/hydra/pkg/utils"
)

// fastJSON trades strict encoding/json compatibility for decode speed on
// the ticker/depth hot path, matching the library's drop-in API.
var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientConfig configures endpoint pool and credentials for BinanceClient.
type ClientConfig struct {
	APIKey     string
	APISecret  string
	Primary    string
	Alternates []string
	MarketData string

	HTTPTimeout time.Duration
}

// BinanceClient implements Client against a Binance-style spot REST and
// streaming API: endpoint failover ordered by ping latency, HMAC-SHA256
// signed private calls, a rolling request-weight budget, and
// auto-reconnecting websocket subscriptions.
type BinanceClient struct {
	cfg ClientConfig

	http *HTTPClient

	mu          sync.RWMutex
	endpoints   []string
	activeIdx   int
	offsetMs    int64 // atomic: server - local clock offset

	weight *weightBudget
	logger *utils.Logger

	shuttingDown atomic.Bool

	streamMu     sync.Mutex
	depthStreams map[string]*WSReconnectManager
	tickerStream *WSReconnectManager
	userStream   *WSReconnectManager
}

// NewBinanceClient pings every configured host, discards unreachable ones,
// orders the rest by ascending latency, and syncs the clock against the
// selected endpoint. Returns an error if no endpoint is reachable or if
// the clock sync against the selected endpoint fails.
func NewBinanceClient(ctx context.Context, cfg ClientConfig) (*BinanceClient, error) {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	c := &BinanceClient{
		cfg:          cfg,
		http:         NewHTTPClient(DefaultHTTPClientConfig()),
		weight:       newWeightBudget(),
		logger:       utils.L().WithComponent("exchange"),
		depthStreams: make(map[string]*WSReconnectManager),
	}

	candidates := append([]string{cfg.Primary}, cfg.Alternates...)
	ordered, err := c.rankByLatency(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("exchange: startup warm-up: %w", err)
	}
	c.endpoints = ordered
	c.activeIdx = 0

	if err := c.syncClock(ctx); err != nil {
		return nil, fmt.Errorf("exchange: clock sync: %w", err)
	}
	return c, nil
}

type latencyResult struct {
	host    string
	latency time.Duration
	ok      bool
}

func (c *BinanceClient) rankByLatency(ctx context.Context, hosts []string) ([]string, error) {
	results := make([]latencyResult, len(hosts))
	var wg sync.WaitGroup
	for i, h := range hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/v3/ping", nil)
			if err != nil {
				return
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			results[i] = latencyResult{host: host, latency: time.Since(start), ok: resp.StatusCode == http.StatusOK}
		}(i, h)
	}
	wg.Wait()

	reachable := make([]latencyResult, 0, len(results))
	for _, r := range results {
		if r.ok {
			reachable = append(reachable, r)
		}
	}
	if len(reachable) == 0 {
		return nil, fmt.Errorf("no reachable endpoint among %d candidates", len(hosts))
	}
	sort.Slice(reachable, func(i, j int) bool { return reachable[i].latency < reachable[j].latency })

	ordered := make([]string, len(reachable))
	for i, r := range reachable {
		ordered[i] = r.host
	}
	return ordered, nil
}

func (c *BinanceClient) activeEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints[c.activeIdx]
}

// advanceEndpoint moves to the next endpoint in the cyclic pool and
// re-syncs the clock against it. Called on any non-rate-limit REST error.
func (c *BinanceClient) advanceEndpoint(ctx context.Context) {
	c.mu.Lock()
	c.activeIdx = (c.activeIdx + 1) % len(c.endpoints)
	next := c.endpoints[c.activeIdx]
	c.mu.Unlock()
	c.logger.Warn("advancing active endpoint", utils.String("endpoint", next))
	if err := c.syncClock(ctx); err != nil {
		c.logger.Warn("clock resync after failover failed", utils.Err(err))
	}
}

func (c *BinanceClient) syncClock(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.activeEndpoint()+"/api/v3/time", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	local := time.Now().UnixMilli()
	atomic.StoreInt64(&c.offsetMs, body.ServerTime-local)
	return nil
}

func (c *BinanceClient) timestampMs() int64 {
	return time.Now().UnixMilli() + atomic.LoadInt64(&c.offsetMs)
}

// sign computes HMAC-SHA256 over the URL-encoded query string.
func (c *BinanceClient) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// requestOpts configures one doRequest call.
type requestOpts struct {
	method   string
	endpoint string
	params   url.Values
	signed   bool
	weight   int
}

// doRequest dispatches one REST call against the active endpoint, handling
// the request-weight gate, signing, rate-limit sleep-and-retry, and
// endpoint failover on any other error. It returns the raw response body
// on success; callers decode it.
func (c *BinanceClient) doRequest(ctx context.Context, opts requestOpts) ([]byte, error) {
	if opts.weight <= 0 {
		opts.weight = 1
	}
	c.weight.reserve(opts.weight)

	for attempt := 0; attempt < 2; attempt++ {
		if opts.params == nil {
			opts.params = url.Values{}
		}
		if opts.signed {
			opts.params.Set("timestamp", strconv.FormatInt(c.timestampMs(), 10))
		}
		query := opts.params.Encode()
		if opts.signed {
			query += "&signature=" + c.sign(query)
		}

		base := c.activeEndpoint() + opts.endpoint
		var req *http.Request
		var err error
		if opts.method == http.MethodGet || opts.method == http.MethodDelete {
			full := base
			if query != "" {
				full += "?" + query
			}
			req, err = http.NewRequestWithContext(ctx, opts.method, full, nil)
		} else {
			req, err = http.NewRequestWithContext(ctx, opts.method, base, strings.NewReader(query))
			if err == nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
		if err != nil {
			return nil, err
		}
		if opts.signed || c.cfg.APIKey != "" {
			req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.advanceEndpoint(ctx)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if used := resp.Header.Get("X-MBX-USED-WEIGHT-1M"); used != "" {
			if n, err := strconv.Atoi(used); err == nil {
				c.weight.observe(n)
			}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
			retryAfter := 60
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if n, err := strconv.Atoi(ra); err == nil {
					retryAfter = n
				}
			}
			c.logger.Warn("rate limited, sleeping", utils.Int("retry_after_s", retryAfter))
			select {
			case <-time.After(time.Duration(retryAfter) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		default:
			apiErr := parseErrorBody(body)
			c.advanceEndpoint(ctx)
			return nil, &Error{Code: apiErr.Code, Message: apiErr.Msg, Endpoint: opts.endpoint, Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
	}
	return nil, &Error{Endpoint: opts.endpoint, Message: "exhausted retries"}
}

type apiErrorBody struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func parseErrorBody(body []byte) apiErrorBody {
	var e apiErrorBody
	_ = fastJSON.Unmarshal(body, &e)
	return e
}

// Close tears down streaming subscriptions and idle HTTP connections.
func (c *BinanceClient) Close() error {
	c.shuttingDown.Store(true)

	c.streamMu.Lock()
	if c.tickerStream != nil {
		c.tickerStream.Close()
	}
	if c.userStream != nil {
		c.userStream.Close()
	}
	for _, mgr := range c.depthStreams {
		mgr.Close()
	}
	c.streamMu.Unlock()

	c.http.Close()
	return nil
}
