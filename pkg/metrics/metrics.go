// Package metrics exposes Prometheus instruments for workflow runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "videoresearch"

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeAborted   = "aborted"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	runs           *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	researchChunks prometheus.Counter
	payloadTiers   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each workflow stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 300},
		}, []string{"step", "outcome"}),
		researchChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_chunks_total",
			Help:      "Research chunk events emitted.",
		}),
		payloadTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_payload_total",
			Help:      "Final payloads by serialization tier.",
		}, []string{"tier"}),
	}

	m.registry.MustRegister(
		m.runs,
		m.stageDuration,
		m.researchChunks,
		m.payloadTiers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.stageDuration.WithLabelValues(step, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ResearchChunks(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.researchChunks.Add(float64(n))
}

func (m *Metrics) PayloadTier(tier string) {
	if m == nil {
		return
	}

	m.payloadTiers.WithLabelValues(tier).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
