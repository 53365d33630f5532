// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation Metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_recommend_requests_total",
			Help: "Total number of recommendation requests by terminal status",
		},
		[]string{"status"}, // "success", "empty", "error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_recommend_duration_seconds",
			Help:    "Duration of recommendation tasks in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// Vector Cache Metrics
	CacheHydrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_cache_hydrations_total",
			Help: "Total number of vector cache hydration attempts",
		},
		[]string{"source", "outcome"}, // outcome: "success", "skipped", "empty", "error"
	)

	CacheRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_cache_records",
			Help: "Number of movie vectors loaded into the local cache",
		},
	)

	// Refresh Job Metrics
	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_refresh_runs_total",
			Help: "Total number of cache refresh runs by outcome",
		},
		[]string{"outcome"}, // "success", "partial", "failed", "skipped"
	)

	RefreshBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_refresh_batches_total",
			Help: "Total number of refresh batches written to the durable store",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_refresh_duration_seconds",
			Help:    "Duration of cache refresh runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last refresh run without failed batches",
		},
	)

	// Catalog Metrics
	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_catalog_query_duration_seconds",
			Help:    "Duration of catalog (DuckDB) queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CatalogQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_catalog_query_errors_total",
			Help: "Total number of catalog query errors",
		},
		[]string{"operation"},
	)

	// Durable Store Metrics
	DurableOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_durable_operations_total",
			Help: "Total number of durable vector store operations",
		},
		[]string{"backend", "operation", "result"}, // result: "success", "failure", "rejected"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinematch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// NATS Transport Metrics
	NATSRequestsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_nats_requests_total",
			Help: "Total number of recommendation requests received over NATS",
		},
		[]string{"result"}, // "success", "error", "decode_error", "superseded"
	)
)

// RecordCatalogQuery records a catalog query metric.
func RecordCatalogQuery(operation string, duration time.Duration, err error) {
	CatalogQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		CatalogQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRefreshBatch records the outcome of one refresh batch.
func RecordRefreshBatch(err error) {
	if err != nil {
		RefreshBatches.WithLabelValues("failure").Inc()
		return
	}
	RefreshBatches.WithLabelValues("success").Inc()
}

// RecordRefreshRun records a completed refresh run.
func RecordRefreshRun(outcome string, duration time.Duration) {
	RefreshRuns.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(duration.Seconds())
	if outcome == "success" {
		RefreshLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordDurableOperation records a durable store call.
func RecordDurableOperation(backend, operation, result string) {
	DurableOperations.WithLabelValues(backend, operation, result).Inc()
}
