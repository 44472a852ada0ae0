// Package metrics registers the Prometheus collectors for the chat pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCanned   = "canned"
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"

	StageSQL    = "sql"
	StageAnswer = "answer"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homesync_chat_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	chatTurnDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homesync_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn latency in seconds.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homesync_llm_requests_total",
			Help: "Total number of LLM calls by pipeline stage and status.",
		},
		[]string{"stage", "status"},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homesync_llm_request_duration_seconds",
			Help:    "LLM call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
	sqlQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homesync_sql_queries_total",
			Help: "Total number of synthesized SQL statements executed, by status.",
		},
		[]string{"status"},
	)
	sqlQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "homesync_sql_query_duration_seconds",
			Help:    "Synthesized SQL execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "homesync_active_sessions",
			Help: "Current number of open chat sessions.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homesync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homesync_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatTurnDurationSeconds,
		llmRequestsTotal,
		llmRequestDurationSeconds,
		sqlQueriesTotal,
		sqlQueryDurationSeconds,
		activeSessions,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	chatTurnDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveLLMCall(stage string, elapsed time.Duration, err error) {
	llmRequestsTotal.WithLabelValues(stage, status(err)).Inc()
	llmRequestDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveQuery(elapsed time.Duration, err error) {
	sqlQueriesTotal.WithLabelValues(status(err)).Inc()
	sqlQueryDurationSeconds.Observe(elapsed.Seconds())
}

func SetActiveSessions(n int) {
	if n < 0 {
		n = 0
	}
	activeSessions.Set(float64(n))
}

func ObserveHTTP(method, route, statusCode string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, statusCode).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
