package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the analysis-cycle loop: cycle latency, how many
// candidate paths each cycle finds/allocates/dispatches, and the runtime
// counters an operator watches to tell a healthy engine from a stuck one.

var cycleLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "cycle_latency_ms",
		Help:      "Wall time of one full analysis cycle in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
)

var pathEngineLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "path_engine_latency_ms",
		Help:      "Time spent searching paths from one starting asset",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	},
	[]string{"start_asset"},
)

var cyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "cycles_total",
		Help:      "Total number of analysis cycles run, by outcome",
	},
	[]string{"outcome"}, // completed, skipped_system_status, skipped_no_candidates
)

var pathsFound = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "paths_found_total",
		Help:      "Total number of profitable candidate paths found across all cycles",
	},
)

var pathsAllocated = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "paths_allocated_total",
		Help:      "Total number of paths the allocator assigned a position to",
	},
)

var pathsDispatched = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "paths_dispatched_total",
		Help:      "Total number of paths handed to the executor",
	},
)

var pathsExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "paths_executed_total",
		Help:      "Total number of executed paths, by result",
	},
	[]string{"result"}, // profit, loss
)

var graphAssets = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "graph_assets",
		Help:      "Number of assets currently in the pair graph",
	},
)

var depthSubscriptions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "depth_subscriptions",
		Help:      "Current number of active depth-stream subscriptions",
	},
)

var tickerMessagesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "ticker_messages_total",
		Help:      "Total number of ticker stream messages processed",
	},
)

var graphRebuildsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "hydra",
		Subsystem: "orchestrator",
		Name:      "graph_rebuilds_total",
		Help:      "Total number of pair-graph rebuilds",
	},
)

func recordCycleOutcome(outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
}

func recordExecutedPath(profitLoss float64) {
	result := "loss"
	if profitLoss > 0 {
		result = "profit"
	}
	pathsExecuted.WithLabelValues(result).Inc()
}
