package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal tracks executed mutations per operation and result.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_mutations_total",
			Help: "Total number of executed mutations",
		},
		[]string{"operation", "result"},
	)

	// MutationDuration tracks mutation execution latency.
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_mutation_duration_seconds",
			Help:    "Mutation execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ValidationFailuresTotal tracks validation failures per operation and error code.
	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_validation_failures_total",
			Help: "Total number of validation failures",
		},
		[]string{"operation", "code"},
	)

	// CircuitBreakerState exposes the breaker state per operation (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collector_circuit_breaker_state",
			Help: "Circuit breaker state per operation (0=closed, 1=half-open, 2=open)",
		},
		[]string{"operation"},
	)

	// EventsPublishedTotal tracks events published per channel.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_events_published_total",
			Help: "Total number of events published to broadcast channels",
		},
		[]string{"channel"},
	)

	// EventsDroppedTotal tracks events dropped due to subscriber backlog.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		},
		[]string{"channel"},
	)

	// ActiveSubscriptions tracks the number of live subscriptions per channel.
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collector_active_subscriptions",
			Help: "Number of active subscriptions",
		},
		[]string{"channel"},
	)

	// ValidationCacheHits tracks validation cache hits and misses.
	ValidationCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_validation_cache_total",
			Help: "Validation cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// DBConnectionsOpen tracks open database connections.
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_db_connections_open",
			Help: "Open database connections",
		},
	)

	// DBConnectionsInUse tracks in-use database connections.
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_db_connections_in_use",
			Help: "Database connections currently in use",
		},
	)
)
