// Package metrics provides Prometheus instrumentation for governor components.
//
// # Overview
//
// The metrics package instruments:
//   - Token buckets (requested, granted, returned and aborted tokens, replenishments, wait time)
//   - Rate-limited consumers (completed units, observed rate, errors)
//   - Capacity plans (applied and failed capacity changes)
//
// # Quick Start
//
// Use the metrics-enabled constructors:
//
//	limiter, err := bucket.NewWithMetrics(10, time.Second, "api_requests")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	limiter, err := bucket.NewWithConfigAndMetrics(
//		bucket.Config{Capacity: 10, Interval: time.Second, InitialTokens: -1},
//		"custom_bucket",
//		metrics.Config{Enabled: true, Registry: registry},
//	)
//
// # Available Metrics
//
//   - governor_bucket_requested_tokens_total
//   - governor_bucket_granted_tokens_total
//   - governor_bucket_returned_tokens_total
//   - governor_bucket_aborted_acquires_total{reason="canceled"|"disposed"}
//   - governor_bucket_replenishments_total
//   - governor_bucket_acquire_duration_seconds
//   - governor_bucket_tokens_available
//   - governor_bucket_capacity
//   - governor_bucket_waiting
//   - governor_consumer_units_total
//   - governor_consumer_observed_rate
//   - governor_consumer_errors_total
//   - governor_capacity_plan_changes_total{result="applied"|"failed"}
//
// # Runtime Control
//
// Components implementing Instrumentable can be toggled at runtime:
//
//	ml.DisableMetrics()
//	ml.EnableMetrics(config)
//	enabled := ml.MetricsEnabled()
package metrics
