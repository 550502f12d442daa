package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by Metrics.
const (
	OutcomeCacheHit     = "cache_hit"
	OutcomeFetched      = "fetched"
	OutcomeStale        = "stale"
	OutcomeError        = "error"
	OutcomeQuotaBlocked = "quota_blocked"
)

// Metrics contains Prometheus metrics for the governance layer.
type Metrics struct {
	requests      *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
	usagePercent  *prometheus.GaugeVec
}

// NewMetrics creates governance metrics registered on reg.
// A nil reg falls back to the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mercury_governance_requests_total",
				Help: "Governed requests by service and outcome",
			},
			[]string{"service", "outcome"},
		),

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mercury_governance_fetch_duration_seconds",
				Help: "Duration of rate-limited fetches, queue wait included",
				// Queue waits dominate under load, so buckets stretch well
				// past typical HTTP latencies.
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"service"},
		),

		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mercury_governance_queue_depth",
				Help: "Tasks waiting for a rate-limiter slot",
			},
			[]string{"service"},
		),

		usagePercent: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mercury_governance_monthly_usage_percent",
				Help: "Monthly quota consumption per service (0-100)",
			},
			[]string{"service"},
		),
	}
}

// RecordRequest records a governed request outcome.
func (m *Metrics) RecordRequest(service, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, outcome).Inc()
}

// ObserveFetchDuration records a fetch duration in seconds.
func (m *Metrics) ObserveFetchDuration(service string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(service).Observe(seconds)
}

// SetQueueDepth updates the queue-depth gauge for a service.
func (m *Metrics) SetQueueDepth(service string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(service).Set(float64(depth))
}

// SetUsagePercent updates the monthly usage gauge for a service.
func (m *Metrics) SetUsagePercent(service string, percent float64) {
	if m == nil {
		return
	}
	m.usagePercent.WithLabelValues(service).Set(percent)
}
