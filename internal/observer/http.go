package observer

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p3dr-dev/hydra/internal/models"
)

// Server is the observer's minimal HTTP surface: a health check, the
// latest trading-stats snapshot, the WebSocket upgrade endpoint, and
// Prometheus metrics.
type Server struct {
	hub *Hub

	mu    sync.RWMutex
	stats models.TradingStats
}

func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// UpdateStats records the latest snapshot for the /stats endpoint to
// serve and broadcasts it to connected observers.
func (s *Server) UpdateStats(stats models.TradingStats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	s.hub.BroadcastStats(stats)
}

// BroadcastCycleSummary publishes one analysis cycle's outcome to every
// connected observer.
func (s *Server) BroadcastCycleSummary(summary CycleSummary) {
	s.hub.BroadcastCycleSummary(summary)
}

// Router builds the mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ServeWS(s.hub, w, req)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
