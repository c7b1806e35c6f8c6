package quality

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

const (
	namespace = "researchd"
	subsystem = "quality"
)

// Metrics holds Prometheus collectors for the validation tiers.
// A nil *Metrics records nothing.
type Metrics struct {
	warnings       *prometheus.CounterVec
	contradictions *prometheus.CounterVec
	envelopes      *prometheus.CounterVec
	scores         *prometheus.HistogramVec
	gates          *prometheus.CounterVec
}

// NewMetrics registers the quality collectors with reg.
//
// Metrics:
//   - researchd_quality_warnings_total{rule,executor_type}
//   - researchd_quality_contradictions_total{kind}
//   - researchd_quality_envelopes_total{outcome}
//   - researchd_quality_score{dimension}
//   - researchd_quality_gate_total{outcome}
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "warnings_total",
			Help:      "Tier 1 self-check warnings by rule.",
		}, []string{"rule", "executor_type"}),
		contradictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "contradictions_total",
			Help:      "Tier 2 contradictions by kind.",
		}, []string{"kind"}),
		envelopes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "envelopes_total",
			Help:      "Tier 2 validation envelopes by outcome.",
		}, []string{"outcome"}),
		scores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "score",
			Help:      "Tier 3 IAM-SDAI scores by dimension.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"dimension"}),
		gates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gate_total",
			Help:      "Tier 3 quality gate outcomes.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) recordWarnings(executorType research.ExecutorType, warnings []Warning) {
	if m == nil {
		return
	}
	for _, w := range warnings {
		m.warnings.WithLabelValues(string(w.Rule), string(executorType)).Inc()
	}
}

func (m *Metrics) recordEnvelope(env research.ValidationEnvelope) {
	if m == nil {
		return
	}
	for _, c := range env.Contradictions {
		m.contradictions.WithLabelValues(string(c.Kind)).Inc()
	}
	m.envelopes.WithLabelValues(outcome(env.ValidationPassed)).Inc()
}

func (m *Metrics) recordScores(s research.QualityScoreSet) {
	if m == nil {
		return
	}
	for _, d := range s.Dimensions() {
		m.scores.WithLabelValues(d.Name).Observe(d.Score)
	}
	m.scores.WithLabelValues("overall").Observe(s.Overall)
	m.gates.WithLabelValues(outcome(s.Passed)).Inc()
}

func outcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
