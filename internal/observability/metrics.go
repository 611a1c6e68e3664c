// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Detection metrics
	PoolsDetected   *prometheus.CounterVec
	PoolsSuppressed *prometheus.CounterVec
	ListenerEvents  *prometheus.CounterVec

	// Queue metrics
	AdmissionActive  prometheus.Gauge
	AdmissionWaiting prometheus.Gauge
	CallQueueDepth   prometheus.Gauge
	CallQueueWait    prometheus.Histogram

	// Filter metrics
	FilterResults  *prometheus.CounterVec
	FilterDuration *prometheus.HistogramVec
	PoolDecisions  *prometheus.CounterVec

	// Trading metrics
	TradeAttempts  *prometheus.CounterVec
	TradeResults   *prometheus.CounterVec
	PositionsOpen  prometheus.Gauge
	PositionExits  *prometheus.CounterVec
	DecisionEvents *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_pool_sniper"
	}

	return &Metrics{
		PoolsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "pools_detected_total",
			Help:      "Total number of pools decoded from chain events by DEX",
		}, []string{"dex"}),
		PoolsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "pools_suppressed_total",
			Help:      "Total number of detections dropped by dedup or debounce",
		}, []string{"reason"}),
		ListenerEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "listener_events_total",
			Help:      "Total number of account change notifications by DEX and outcome",
		}, []string{"dex", "outcome"}),

		AdmissionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "admission_active",
			Help:      "Number of mints currently being processed",
		}),
		AdmissionWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "admission_waiting",
			Help:      "Number of mints waiting for an admission slot",
		}),
		CallQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "call_queue_depth",
			Help:      "Number of rate limited calls waiting for dispatch",
		}),
		CallQueueWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "call_queue_wait_seconds",
			Help:      "Time a rate limited call waited before dispatch",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		FilterResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "results_total",
			Help:      "Total number of filter evaluations by filter and outcome",
		}, []string{"filter", "outcome"}),
		FilterDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "duration_seconds",
			Help:      "Filter evaluation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"filter"}),
		PoolDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "pool_decisions_total",
			Help:      "Total number of pool accept/reject decisions by DEX",
		}, []string{"dex", "decision"}),

		TradeAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "submission_attempts_total",
			Help:      "Total number of transaction submissions by side and strategy",
		}, []string{"side", "strategy"}),
		TradeResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "results_total",
			Help:      "Total number of buy/sell results by side and outcome",
		}, []string{"side", "outcome"}),
		PositionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "positions_open",
			Help:      "Number of positions not yet in a terminal state",
		}),
		PositionExits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "position_exits_total",
			Help:      "Total number of monitor exits by trigger",
		}, []string{"trigger"}),
		DecisionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "decisions_total",
			Help:      "Total number of decision events by code",
		}, []string{"code"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoolDetected increments the detected pools counter.
func RecordPoolDetected(dex string) {
	DefaultMetrics.PoolsDetected.WithLabelValues(dex).Inc()
}

// RecordPoolSuppressed records a detection dropped by dedup ("seen_signature",
// "seen_pool") or coalesced by debounce ("debounced").
func RecordPoolSuppressed(reason string) {
	DefaultMetrics.PoolsSuppressed.WithLabelValues(reason).Inc()
}

// RecordListenerEvent records an account change notification outcome.
func RecordListenerEvent(dex, outcome string) {
	DefaultMetrics.ListenerEvents.WithLabelValues(dex, outcome).Inc()
}

// UpdateAdmission updates admission queue gauges.
func UpdateAdmission(active, waiting int) {
	DefaultMetrics.AdmissionActive.Set(float64(active))
	DefaultMetrics.AdmissionWaiting.Set(float64(waiting))
}

// UpdateCallQueueDepth updates the call queue depth gauge.
func UpdateCallQueueDepth(depth int) {
	DefaultMetrics.CallQueueDepth.Set(float64(depth))
}

// RecordCallQueueWait records how long a call waited for dispatch.
func RecordCallQueueWait(seconds float64) {
	DefaultMetrics.CallQueueWait.Observe(seconds)
}

// RecordFilterResult records one filter evaluation.
func RecordFilterResult(filter string, ok bool, seconds float64) {
	outcome := "fail"
	if ok {
		outcome = "pass"
	}
	DefaultMetrics.FilterResults.WithLabelValues(filter, outcome).Inc()
	DefaultMetrics.FilterDuration.WithLabelValues(filter).Observe(seconds)
}

// RecordPoolDecision records a pipeline accept/reject decision.
func RecordPoolDecision(dex string, accepted bool) {
	decision := "rejected"
	if accepted {
		decision = "accepted"
	}
	DefaultMetrics.PoolDecisions.WithLabelValues(dex, decision).Inc()
}

// RecordTradeAttempt records one transaction submission.
func RecordTradeAttempt(side, strategy string) {
	DefaultMetrics.TradeAttempts.WithLabelValues(side, strategy).Inc()
}

// RecordTradeResult records the final buy/sell outcome.
func RecordTradeResult(side string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	DefaultMetrics.TradeResults.WithLabelValues(side, outcome).Inc()
}

// UpdatePositionsOpen sets the open positions gauge.
func UpdatePositionsOpen(n int) {
	DefaultMetrics.PositionsOpen.Set(float64(n))
}

// RecordPositionExit records why the monitor loop ended.
func RecordPositionExit(trigger string) {
	DefaultMetrics.PositionExits.WithLabelValues(trigger).Inc()
}

// RecordDecisionEvent counts a decision event by code.
func RecordDecisionEvent(code string) {
	DefaultMetrics.DecisionEvents.WithLabelValues(code).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
