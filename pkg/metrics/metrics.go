// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal counts Telegram updates by kind (message, callback, command).
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total Telegram updates handled",
		},
		[]string{"kind"},
	)

	// RetrievalsTotal counts media lookups by platform and outcome.
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrievals_total",
			Help: "Media retrievals by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	// SearchesTotal counts keyword searches by outcome (results, empty, error).
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Keyword searches by outcome",
		},
		[]string{"outcome"},
	)

	// PanicsRecovered counts handler panics caught at the top level.
	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "handler_panics_recovered_total",
			Help: "Panics recovered in update handlers",
		},
	)

	// UpstreamDuration tracks extraction and search API latency.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"service", "status"},
	)

	// CacheLookups counts result cache reads by outcome (hit, miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"outcome"},
	)

	// DeliveriesTotal counts media deliveries by kind and outcome.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Media deliveries by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// DeliveriesActive tracks uploads currently holding a delivery slot.
	DeliveriesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deliveries_active",
			Help: "Number of uploads in progress",
		},
	)

	// CleanupsPending tracks scheduled message deletions not yet fired.
	CleanupsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleanups_pending",
			Help: "Scheduled message deletions waiting to fire",
		},
	)

	// CleanupDeletes counts individual message deletions by status.
	CleanupDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_deletes_total",
			Help: "Message deletions attempted by the cleanup scheduler",
		},
		[]string{"status"},
	)

	// UsersSeen tracks distinct chat users observed since start.
	UsersSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_seen",
			Help: "Distinct users seen since start",
		},
	)
)

// RecordUpstream records metrics for one upstream call.
func RecordUpstream(service, status string, duration float64) {
	UpstreamDuration.WithLabelValues(service, status).Observe(duration)
}

// RecordDelivery records the outcome of one delivery.
func RecordDelivery(kind, outcome string) {
	DeliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}
