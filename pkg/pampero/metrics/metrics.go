// Package metrics exposes Prometheus instrumentation for the forecast
// pipeline. Everything registers on the default registry; the serve command
// exports it via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

const subsystem = "pampero"

var (
	// ProviderRequests counts provider calls by source and outcome.
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "provider_requests_total",
			Help:      "Number of provider fetches by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: "success", "error", "breaker_open"
	)

	// ProviderLatency measures wall time per provider call, retries included.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of provider fetches including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"source"},
	)

	// BreakerState reports each source breaker: 0 closed, 1 half-open, 2 open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		},
		[]string{"source"},
	)

	// FusedForecasts counts fusion runs by confidence band.
	FusedForecasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "fused_forecasts_total",
			Help:      "Number of unified forecasts produced by confidence level",
		},
		[]string{"confidence_level"},
	)

	// InconsistenciesDetected counts significant cross-source disagreements.
	InconsistenciesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "inconsistencies_detected_total",
			Help:      "Number of cross-source inconsistency reports by variable",
		},
		[]string{"variable", "significant"},
	)

	// PatternsDetected counts detected weather patterns.
	PatternsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "patterns_detected_total",
			Help:      "Number of detected weather patterns by type and risk level",
		},
		[]string{"pattern", "risk_level"},
	)

	// AlertsGenerated counts emitted operational alerts.
	AlertsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "alerts_generated_total",
			Help:      "Number of operational alerts by level",
		},
		[]string{"level"},
	)

	// RiskScores tracks computed risk scores per profile.
	RiskScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "risk_score",
			Help:      "Computed 0-5 risk scores by profile",
			Buckets:   prometheus.LinearBuckets(0, 0.5, 11),
		},
		[]string{"profile"},
	)

	// CacheRequests counts forecast cache lookups.
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "cache_requests_total",
			Help:      "Forecast cache lookups by source and result",
		},
		[]string{"source", "result"}, // result: "hit", "miss"
	)
)

func init() {
	prometheus.MustRegister(ProviderRequests)
	prometheus.MustRegister(ProviderLatency)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(FusedForecasts)
	prometheus.MustRegister(InconsistenciesDetected)
	prometheus.MustRegister(PatternsDetected)
	prometheus.MustRegister(AlertsGenerated)
	prometheus.MustRegister(RiskScores)
	prometheus.MustRegister(CacheRequests)
}

// ObserveProviderCall records one provider fetch.
func ObserveProviderCall(source meteo.SourceID, elapsed time.Duration, err error, breakerOpen bool) {
	outcome := "success"
	switch {
	case breakerOpen:
		outcome = "breaker_open"
	case err != nil:
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(string(source), outcome).Inc()
	ProviderLatency.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// SetBreakerState maps a breaker state name onto the gauge.
func SetBreakerState(source meteo.SourceID, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	BreakerState.WithLabelValues(string(source)).Set(v)
}
