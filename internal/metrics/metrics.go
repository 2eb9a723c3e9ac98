// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_runs_total",
			Help: "Total number of finished ingestion runs by status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamebot_run_duration_seconds",
			Help:    "Duration of bronze loads in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	RunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamebot_runs_in_progress",
			Help: "1 while a bronze load is running in this process",
		},
	)

	// Merge metrics
	MergeRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_merge_rows_total",
			Help: "Rows merged into bronze tables by action (inserted, updated, unchanged)",
		},
		[]string{"table", "action"},
	)

	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamebot_merge_duration_seconds",
			Help:    "Duration of a single table merge in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	// Source metrics
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_fetch_total",
			Help: "Snapshot fetch outcomes (ok, cached, error, retried)",
		},
		[]string{"result"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamebot_fetch_duration_seconds",
			Help:    "Duration of a single dataset fetch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Drift metrics
	DriftFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_drift_findings_total",
			Help: "Drift and validation findings by table and kind",
		},
		[]string{"table", "kind"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamebot_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_notifications_total",
			Help: "Schema notifications by type and outcome (published, deduplicated, failed)",
		},
		[]string{"type", "outcome"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamebot_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamebot_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRun records a finished run.
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
}

// TrackRunInProgress flips the in-progress gauge.
func TrackRunInProgress(running bool) {
	if running {
		RunsInProgress.Set(1)
		return
	}
	RunsInProgress.Set(0)
}

// RecordMerge records row counts and duration for one table merge.
func RecordMerge(table string, inserted, updated, unchanged int, duration time.Duration) {
	MergeRowsTotal.WithLabelValues(table, "inserted").Add(float64(inserted))
	MergeRowsTotal.WithLabelValues(table, "updated").Add(float64(updated))
	MergeRowsTotal.WithLabelValues(table, "unchanged").Add(float64(unchanged))
	MergeDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordFetch records a fetch outcome; duration is ignored for cache hits.
func RecordFetch(result string, duration time.Duration) {
	FetchTotal.WithLabelValues(result).Inc()
	if result != "cached" {
		FetchDuration.Observe(duration.Seconds())
	}
}

// RecordDriftFinding counts one finding.
func RecordDriftFinding(table, kind string) {
	DriftFindingsTotal.WithLabelValues(table, kind).Inc()
}

// RecordCircuitBreakerTransition records a state change. States use the
// gobreaker names: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordNotification records a notification outcome.
func RecordNotification(eventType, outcome string) {
	NotificationsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
