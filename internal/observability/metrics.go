package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeelink_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records remote collection call latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zeelink_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// StoreMutations counts collection store mutations by operation and outcome.
	StoreMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeelink_store_mutations_total",
		Help: "Collection store mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	// ModerationDecisions counts question classifications by status.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeelink_moderation_decisions_total",
		Help: "Question moderation decisions by resulting status",
	}, []string{"status"})

	// SessionEvents counts session lifecycle events such as login, restore and logout.
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeelink_session_events_total",
		Help: "Session lifecycle events by type and result",
	}, []string{"event", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
