// Package feedmetrics exposes Prometheus instrumentation for the feed
// evaluator, following the teacher's package-level-CounterVec convention
// (internal/metrics/metrics.go) rather than a framework-specific metrics
// abstraction.
package feedmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// NodeEvaluationsTotal counts GetData calls per node type and outcome.
	NodeEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfeed_node_evaluations_total",
			Help: "Node GetData invocations by node type and outcome",
		},
		[]string{"node_type", "outcome"},
	)

	// PageItemsReturned histograms the number of items a node returned,
	// per node type, useful for spotting mergers that systematically
	// under-fill their limit.
	PageItemsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartfeed_page_items_returned",
			Help:    "Number of items returned by a node's GetData call",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
		[]string{"node_type"},
	)

	// SessionCacheResultsTotal counts MergerViewSession cache outcomes.
	SessionCacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfeed_session_cache_results_total",
			Help: "MergerViewSession cache results: materialized, hit, error",
		},
		[]string{"merger_id", "result"},
	)

	// DedupDroppedTotal counts items removed by MergerViewSession
	// deduplication.
	DedupDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfeed_dedup_dropped_total",
			Help: "Items dropped by view-session deduplication",
		},
		[]string{"merger_id"},
	)
)

// MustRegister registers every collector above with reg. Call once at
// process startup (see cmd/demo/main.go).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		NodeEvaluationsTotal,
		PageItemsReturned,
		SessionCacheResultsTotal,
		DedupDroppedTotal,
	)
}
