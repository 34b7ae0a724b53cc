// Package metrics exposes Prometheus collectors for the scoring pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loanrisk"

// Outcome labels for decisions_total.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	decisions           *prometheus.CounterVec
	fraudFlags          prometheus.Counter
	categoryFallbacks   *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	scoringDuration     prometheus.Histogram
	modelReloads        *prometheus.CounterVec
}

// New creates collectors on a private registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Scoring calls by outcome.",
		}, []string{"outcome"}),
		fraudFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fraud_flags_total",
			Help:      "Decisions flagged by the fraud heuristic.",
		}),
		categoryFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_fallbacks_total",
			Help:      "Categorical values unseen at training time, by field.",
		}, []string{"field"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Decisions computed but not stored.",
		}),
		scoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "End-to-end scoring latency including persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		modelReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Artifact reload attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.decisions,
		m.fraudFlags,
		m.categoryFallbacks,
		m.persistenceFailures,
		m.scoringDuration,
		m.modelReloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDecision records one completed scoring call.
func (m *Metrics) ObserveDecision(approved, fraud bool, fallbacks []string, took time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeRejected
	if approved {
		outcome = OutcomeApproved
	}
	m.decisions.WithLabelValues(outcome).Inc()
	if fraud {
		m.fraudFlags.Inc()
	}
	for _, f := range fallbacks {
		m.categoryFallbacks.WithLabelValues(f).Inc()
	}
	m.scoringDuration.Observe(took.Seconds())
}

// ObserveFailure records a scoring call that produced no decision.
func (m *Metrics) ObserveFailure(persistence bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(OutcomeFailed).Inc()
	if persistence {
		m.persistenceFailures.Inc()
	}
}

// ObserveReload records an artifact reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.modelReloads.WithLabelValues(result).Inc()
}
