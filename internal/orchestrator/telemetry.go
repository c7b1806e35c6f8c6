package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/researchd/internal/orchestrator"

// Metrics counts leader outcomes.
type Metrics struct {
	phases         metric.Int64Counter
	contradictions metric.Int64Counter
	reports        metric.Int64Counter
	overall        metric.Float64Histogram
}

// NewMetrics creates metrics on meter, or on the global provider when nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	m := &Metrics{}
	var err error

	if m.phases, err = meter.Int64Counter(
		"orchestrator.phases.total",
		metric.WithDescription("Phases executed by outcome"),
		metric.WithUnit("{phase}"),
	); err != nil {
		return nil, err
	}
	if m.contradictions, err = meter.Int64Counter(
		"orchestrator.contradictions.total",
		metric.WithDescription("Cross-validation contradictions found"),
		metric.WithUnit("{contradiction}"),
	); err != nil {
		return nil, err
	}
	if m.reports, err = meter.Int64Counter(
		"orchestrator.reports.total",
		metric.WithDescription("Final reports by quality gate outcome"),
		metric.WithUnit("{report}"),
	); err != nil {
		return nil, err
	}
	if m.overall, err = meter.Float64Histogram(
		"orchestrator.report.overall_score",
		metric.WithDescription("Overall quality score of final reports"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.4, 0.6, 0.8, 0.85, 0.9, 0.95, 1.0),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordPhase(ctx context.Context, phase int, outcome string, contradictions int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("phase", phase), attribute.String("outcome", outcome))
	m.phases.Add(ctx, 1, attrs)
	if contradictions > 0 {
		m.contradictions.Add(ctx, int64(contradictions), metric.WithAttributes(attribute.Int("phase", phase)))
	}
}

func (m *Metrics) recordReport(ctx context.Context, overall float64, passed bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.reports.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.overall.Record(ctx, overall)
}

// Tracer returns the orchestrator tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
