// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygate_requests_total",
		Help: "Total endpoint invocations by apiKey and outcome.",
	}, []string{"api_key", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaygate_request_duration_seconds",
		Help:    "End-to-end endpoint invocation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"api_key"})

	SlowQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygate_slow_queries_total",
		Help: "Total queries that exceeded the configured slow-query threshold.",
	}, []string{"api_key"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygate_rate_limited_total",
		Help: "Total requests rejected by the rate limiter.",
	}, []string{"api_key", "reason"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygate_jobs_total",
		Help: "Total job-flow executions by jobKey and outcome.",
	}, []string{"job_key", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaygate_job_duration_seconds",
		Help:    "End-to-end job-flow execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_key"})

	ConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygate_config_reloads_total",
		Help: "Total config registry reload batches by configType.",
	}, []string{"config_type"})
)
