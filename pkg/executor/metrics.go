// Package executor implements the Executor (C8): the fifteen-step
// per-step orchestration algorithm from spec.md §4.8, wiring together
// the State Store, Phase Machine, Context Builder, LLM Driver, Tool
// Registry, Fact Extractor, and Loop Detector under a single
// transaction per step.
package executor

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the Prometheus instrumentation surface for the executor,
// grounded on the teacher's pkg/observability.Metrics pattern of
// CounterVec/HistogramVec pairs registered against a private registry
// rather than the default global one, so multiple Executor instances in
// one process (e.g. under test) never collide on metric registration.
type Metrics struct {
	registry *prometheus.Registry

	stepsTotal         *prometheus.CounterVec
	stepDuration       prometheus.Histogram
	loopDetections     *prometheus.CounterVec
	reverts            prometheus.Counter
}

// NewMetrics constructs a Metrics bound to a fresh private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixloop_steps_total",
			Help: "Total executor steps by result.",
		}, []string{"result"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fixloop_step_duration_seconds",
			Help:    "Wall-clock duration of one executor step.",
			Buckets: prometheus.DefBuckets,
		}),
		loopDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixloop_loop_detections_total",
			Help: "Loop detector positive matches by type.",
		}, []string{"type"}),
		reverts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixloop_auto_reverts_total",
			Help: "Mutating actions reverted due to a test regression.",
		}),
	}
	reg.MustRegister(m.stepsTotal, m.stepDuration, m.loopDetections, m.reverts)
	return m
}

// Registry exposes the private Prometheus registry for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeStep(result string, seconds float64) {
	m.stepsTotal.WithLabelValues(result).Inc()
	m.stepDuration.Observe(seconds)
}

func (m *Metrics) observeLoopDetection(loopType string) {
	m.loopDetections.WithLabelValues(loopType).Inc()
}

func (m *Metrics) observeRevert() {
	m.reverts.Inc()
}
