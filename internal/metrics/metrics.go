// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagent_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsagent_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Pipeline metrics
var (
	// PipelineRunsTotal counts orchestrator runs by message category and result.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagent_pipeline_runs_total",
			Help: "Total number of agent pipeline runs",
		},
		[]string{"category", "status"},
	)

	// StageDuration measures each pipeline step.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsagent_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	// ArticlesReturned observes how many articles reach the summarization step.
	ArticlesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsagent_articles_returned",
			Help:    "Number of normalized articles per news fetch",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)

// Upstream metrics
var (
	NewsAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagent_news_api_requests_total",
			Help: "Total number of news API fetches by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagent_llm_requests_total",
			Help: "Total number of LLM calls by provider, call kind and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsagent_llm_request_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "kind"},
	)
)

// Audit log metrics
var (
	RunsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsagent_runs_pruned_total",
			Help: "Total number of audit log runs deleted by retention",
		},
	)
)

// ObserveStage records the duration of a pipeline stage that started at start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
