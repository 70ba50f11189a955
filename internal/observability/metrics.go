// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded by CounterTransactions.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

var (
	// AchievementsAwarded counts UserAchievement rows created by the award service.
	AchievementsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gorahrib_achievements_awarded_total",
		Help: "Total number of achievements awarded to users",
	})

	// AchievementsRevoked counts UserAchievement rows removed by revocation.
	AchievementsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gorahrib_achievements_revoked_total",
		Help: "Total number of achievements revoked from users",
	})

	// CounterTransactions counts counter-maintaining transactions by operation and outcome.
	CounterTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gorahrib_counter_tx_total",
		Help: "Total number of counter-maintaining transactions",
	}, []string{"operation", "outcome"})

	// AnnouncementFailures counts announcement posts skipped after a failed insert.
	AnnouncementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gorahrib_announcement_failures_total",
		Help: "Total number of achievement announcement posts that could not be created",
	})

	// CacheLookups counts cache-aside lookups by cache name and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gorahrib_cache_lookups_total",
		Help: "Total number of cache-aside lookups",
	}, []string{"cache", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gorahrib_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketEventsTotal counts realtime events pushed to clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gorahrib_websocket_events_total",
		Help: "Total realtime events delivered by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gorahrib_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// RecordCounterTx records the outcome of a counter-maintaining transaction.
func RecordCounterTx(operation string, err error) {
	outcome := OutcomeCommitted
	if err != nil {
		outcome = OutcomeRolledBack
	}
	CounterTransactions.WithLabelValues(operation, outcome).Inc()
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
