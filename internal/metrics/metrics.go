// Package metrics declares the prometheus collectors for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "metricgate_build_info",
		Help: "Build information of the metric gateway.",
	}, []string{"version", "commit"})

	QueryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metricgate_query_outcomes_total", Help: "Query requests by outcome and error kind.",
	}, []string{"outcome", "kind"})
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metricgate_cache_lookups_total", Help: "Semantic cache lookups by result.",
	}, []string{"result"})
	SQLViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metricgate_sql_violations_total", Help: "Generated statements rejected by the safety validator.",
	}, []string{"kind"})
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metricgate_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metricgate_http_requests_total", Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metricgate_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metricgate_http_rate_limited_total", Help: "Requests rejected by the rate limiter.",
	})
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Pipeline stages.
const (
	StageGenerate = "generate"
	StageValidate = "validate"
	StageExecute  = "execute"
)
