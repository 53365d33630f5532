// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

/*
Package metrics provides Prometheus metrics collection and export.

All collectors are registered with the default registry through promauto
and exposed by the HTTP API at /metrics.

# Available Metrics

Recommendation:
  - cinematch_recommend_requests_total{status}: terminal task outcomes
    (success, empty, error)
  - cinematch_recommend_duration_seconds: task latency

Vector cache:
  - cinematch_cache_hydrations_total{source,outcome}
  - cinematch_cache_records: records loaded by the last hydration

Refresh job:
  - cinematch_refresh_runs_total{outcome}
  - cinematch_refresh_batches_total{outcome}
  - cinematch_refresh_duration_seconds
  - cinematch_refresh_last_success_timestamp

Storage and transport:
  - cinematch_catalog_query_duration_seconds{operation}
  - cinematch_catalog_query_errors_total{operation}
  - cinematch_durable_operations_total{backend,operation,result}
  - cinematch_circuit_breaker_state{name}
  - cinematch_circuit_breaker_state_transitions_total{name,from_state,to_state}
  - cinematch_api_requests_total{method,endpoint,status_code}
  - cinematch_api_request_duration_seconds{method,endpoint}
  - cinematch_nats_requests_total{result}

# Usage

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	metrics.RecordCatalogQuery("get_interactions", time.Since(start), err)
*/
package metrics
