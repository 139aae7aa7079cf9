// Package observer broadcasts trading-stats and cycle-summary snapshots
// over WebSocket to any connected dashboard, and exposes a small HTTP
// admin surface (health, snapshot, metrics).
package observer

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/p3dr-dev/hydra/internal/models"
	"github.com/p3dr-dev/hydra/pkg/utils"
)

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// StatsUpdateMessage carries a fresh TradingStats snapshot.
type StatsUpdateMessage struct {
	Type string              `json:"type"`
	Data models.TradingStats `json:"data"`
}

// CycleSummaryMessage carries the outcome of one analysis cycle.
type CycleSummaryMessage struct {
	Type string       `json:"type"`
	Data CycleSummary `json:"data"`
}

// CycleSummary is what the orchestrator publishes after every analysis
// cycle: how many candidate paths were found, how many were allocated,
// and how many were dispatched to the executor.
type CycleSummary struct {
	PathsFound      int     `json:"paths_found"`
	PathsAllocated  int     `json:"paths_allocated"`
	PathsDispatched int     `json:"paths_dispatched"`
	AvgSpreadPct    float64 `json:"avg_spread_pct"`
	TotalVolume24h  float64 `json:"total_volume_24h"`
	GraphAssets     int     `json:"graph_assets"`
}

// Hub fans out JSON-encoded snapshots to every registered client. It is
// the same register/unregister/broadcast state machine the dashboard used
// for pair-PNL updates, carrying trading-stats and cycle-summary snapshots
// instead.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *utils.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     utils.L().WithComponent("observer"),
	}
}

// Run processes registration and broadcast events until ctx-independent
// shutdown; callers stop it by no longer feeding it and letting the
// process exit, matching the teacher's fire-and-forget hub goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, c := range clients {
				select {
				case c.send <- message:
				default:
					toRemove = append(toRemove, c)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, c := range toRemove {
					if _, ok := h.clients[c]; ok {
						delete(h.clients, c)
						close(c.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warn("evicted slow observer clients", utils.Int("count", len(toRemove)))
			}
		}
	}
}

// Broadcast JSON-encodes message and fans it to every connected client,
// reusing a pooled buffer to avoid an allocation per broadcast.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("failed to marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastStats publishes a fresh TradingStats snapshot.
func (h *Hub) BroadcastStats(stats models.TradingStats) {
	h.Broadcast(&StatsUpdateMessage{Type: "statsUpdate", Data: stats})
}

// BroadcastCycleSummary publishes the outcome of one analysis cycle.
func (h *Hub) BroadcastCycleSummary(summary CycleSummary) {
	h.Broadcast(&CycleSummaryMessage{Type: "cycleSummary", Data: summary})
}

// ClientCount reports how many observers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
