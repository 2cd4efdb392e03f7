// LeadLeague - CRM Sync and Broker Gamification Engine
// Copyright 2026 LeadLeague Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadleague/leadleague

// Package metrics defines the Prometheus instrumentation for LeadLeague:
// CRM request/retry behavior, rate limiter pressure, circuit breaker state,
// sync cycle outcomes, and scoring passes. Everything is registered via
// promauto at package load and exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CRM API metrics

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_crm_requests_total",
			Help: "Total CRM API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadleague_crm_request_duration_seconds",
			Help:    "CRM API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_crm_retries_total",
			Help: "Total CRM request retries by endpoint and reason",
		},
		[]string{"endpoint", "reason"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_crm_pages_fetched_total",
			Help: "Total CRM result pages fetched by endpoint",
		},
		[]string{"endpoint"},
	)

	RateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadleague_ratelimit_wait_seconds",
			Help:    "Time spent waiting for the request budget before each CRM call",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadleague_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"},
	)

	// Sync metrics

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_sync_runs_total",
			Help: "Sync passes by tenant and result",
		},
		[]string{"tenant", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadleague_sync_duration_seconds",
			Help:    "Duration of one tenant sync pass in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"tenant"},
	)

	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_records_synced_total",
			Help: "Records upserted by tenant and resource",
		},
		[]string{"tenant", "resource"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_records_dropped_total",
			Help: "Records dropped before upsert by tenant, resource and reason",
		},
		[]string{"tenant", "resource", "reason"},
	)

	CycleWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadleague_cycle_workers",
			Help: "Tenant workers currently running inside the sync cycle",
		},
	)

	// Scoring metrics

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadleague_scoring_duration_seconds",
			Help:    "Duration of one scoring pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tenant"},
	)

	ScoredBrokers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadleague_scored_brokers",
			Help: "Brokers covered by the latest scoring pass",
		},
		[]string{"tenant"},
	)

	// HTTP surface metrics

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadleague_webhook_requests_total",
			Help: "Webhook deliveries by event type and outcome",
		},
		[]string{"event", "outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadleague_http_request_duration_seconds",
			Help:    "HTTP handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// ObserveSyncDuration records one tenant pass duration.
func ObserveSyncDuration(tenant string, start time.Time) {
	SyncDuration.WithLabelValues(tenant).Observe(time.Since(start).Seconds())
}

// ObserveScoringDuration records one scoring pass duration.
func ObserveScoringDuration(tenant string, start time.Time) {
	ScoringDuration.WithLabelValues(tenant).Observe(time.Since(start).Seconds())
}
