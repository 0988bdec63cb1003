// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "icestock"

var (
	// Forecast metrics
	ForecastFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_fetch_total",
			Help:      "Forecast fetches by requested preference (primary, experimental), serving source and outcome (ok, error)",
		},
		[]string{"preference", "source", "outcome"},
	)

	ForecastFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_fallback_total",
			Help:      "Forecast sources skipped because of a transport or parse failure",
		},
	)

	// Suggestion metrics
	SuggestionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_generated_total",
			Help:      "Weekly suggestions persisted, by canonical strategy",
		},
		[]string{"strategy"},
	)

	Explanations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanation_total",
			Help:      "Explanations requested, by backend",
		},
		[]string{"backend"},
	)

	ExplanationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "explanation_duration_seconds",
			Help:      "Time spent waiting for the explanation backend",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
	)

	// Scheduler metrics
	WeeklyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weekly_run_stores_total",
			Help:      "Stores processed by the weekly job, by outcome (ok, skipped, error)",
		},
		[]string{"outcome"},
	)

	LastWeeklyRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weekly_run_last_timestamp_seconds",
			Help:      "Unix time the last weekly job finished",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
