package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/credence/internal/model"
)

// Metrics holds the pipeline's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	claimsTotal        *prometheus.CounterVec
	claimsDropped      *prometheus.CounterVec
	capabilityCalls    *prometheus.CounterVec
	capabilityDuration *prometheus.HistogramVec
	trustScore         prometheus.Histogram
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_runs_total",
			Help: "Pipeline runs by terminal status",
		}, []string{"status"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credence_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),

		claimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_claims_total",
			Help: "Verified claims by classification",
		}, []string{"status"}),

		claimsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_claims_dropped_total",
			Help: "Claims dropped during verification by reason",
		}, []string{"reason"}),

		capabilityCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_capability_calls_total",
			Help: "Capability invocations by capability and outcome",
		}, []string{"capability", "outcome"}),

		capabilityDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credence_capability_duration_seconds",
			Help:    "Capability call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"capability"}),

		trustScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credence_trust_score",
			Help:    "Distribution of trust scores for completed runs",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}

// ObserveRun records a run that reached a terminal state
func (m *Metrics) ObserveRun(run *model.Run, elapsed time.Duration) {
	if m == nil || run == nil {
		return
	}

	m.runsTotal.WithLabelValues(string(run.Status)).Inc()
	m.runDuration.Observe(elapsed.Seconds())

	for _, r := range run.Results {
		m.claimsTotal.WithLabelValues(string(r.Status)).Inc()
	}
	for _, d := range run.Dropped {
		m.claimsDropped.WithLabelValues(string(d.Reason)).Inc()
	}
	if run.Metrics != nil && run.Status == model.StatusComplete {
		m.trustScore.Observe(float64(run.Metrics.Score))
	}
}

// ObserveCall records one capability invocation
func (m *Metrics) ObserveCall(capability string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.capabilityCalls.WithLabelValues(capability, outcome).Inc()
	m.capabilityDuration.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// ObserveCacheHit records a capability call served from cache
func (m *Metrics) ObserveCacheHit(capability string) {
	if m == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(capability, "cache_hit").Inc()
}
