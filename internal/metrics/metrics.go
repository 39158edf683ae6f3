// Package metrics exposes the prometheus collectors the resolver updates
// as it runs: cache hit/miss counts, per-server query outcomes, and query
// latency. Collectors are package-level vars registered in init, the same
// init-registration shape used for every other collector in this module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheLookups counts result-cache lookups by outcome: "hit" or "miss".
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolve_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// ServerQueries counts exchanges against a configured server by
	// transport ("udp"/"tcp") and outcome ("success"/"protocol_error"/
	// "io_error"/"timeout"/"cancelled").
	ServerQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolve_server_queries_total",
			Help: "Exchanges against a configured server by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)

	// QueryDuration observes the wall-clock time of a whole resolve call,
	// from cache consultation through the server loop, by operation
	// ("addresses"/"service"/"text").
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolve_query_duration_seconds",
			Help:    "Duration of a resolve operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(CacheLookups, ServerQueries, QueryDuration)
}

// CacheHit and CacheMiss record a single result-cache lookup outcome.
func CacheHit()  { CacheLookups.WithLabelValues("hit").Inc() }
func CacheMiss() { CacheLookups.WithLabelValues("miss").Inc() }

// ServerQueryOutcome records a single exchange's outcome for one server.
func ServerQueryOutcome(transport, outcome string) {
	ServerQueries.WithLabelValues(transport, outcome).Inc()
}

// ObserveQueryDuration records how long a resolve operation took.
func ObserveQueryDuration(operation string, d time.Duration) {
	QueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}
