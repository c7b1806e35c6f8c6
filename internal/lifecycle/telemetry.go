package lifecycle

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/researchd/internal/lifecycle"

// Metrics provides OpenTelemetry metrics for executor lifecycles.
type Metrics struct {
	summoned metric.Int64Counter
	retired  metric.Int64Counter
	failed   metric.Int64Counter
	active   metric.Int64UpDownCounter

	executorDuration metric.Float64Histogram
	phaseDuration    metric.Float64Histogram
}

// NewMetrics creates metrics on meter, or on the global provider when nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	m := &Metrics{}
	var err error

	if m.summoned, err = meter.Int64Counter(
		"lifecycle.executors.summoned.total",
		metric.WithDescription("Executors summoned"),
		metric.WithUnit("{executor}"),
	); err != nil {
		return nil, err
	}
	if m.retired, err = meter.Int64Counter(
		"lifecycle.executors.retired.total",
		metric.WithDescription("Executors retired"),
		metric.WithUnit("{executor}"),
	); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter(
		"lifecycle.executors.failed.total",
		metric.WithDescription("Executor invocations that failed or timed out"),
		metric.WithUnit("{executor}"),
	); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter(
		"lifecycle.executors.active",
		metric.WithDescription("Executors currently owned by a phase run"),
		metric.WithUnit("{executor}"),
	); err != nil {
		return nil, err
	}
	if m.executorDuration, err = meter.Float64Histogram(
		"lifecycle.executor.duration.seconds",
		metric.WithDescription("Duration of one executor invocation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300),
	); err != nil {
		return nil, err
	}
	if m.phaseDuration, err = meter.Float64Histogram(
		"lifecycle.phase.duration.seconds",
		metric.WithDescription("Duration of a phase run from summon to retirement"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func typeAttr(t research.ExecutorType) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("executor.type", string(t)))
}

func (m *Metrics) recordSummoned(ctx context.Context, t research.ExecutorType) {
	if m == nil {
		return
	}
	m.summoned.Add(ctx, 1, typeAttr(t))
	m.active.Add(ctx, 1, typeAttr(t))
}

func (m *Metrics) recordRetired(ctx context.Context, t research.ExecutorType) {
	if m == nil {
		return
	}
	m.retired.Add(ctx, 1, typeAttr(t))
	m.active.Add(ctx, -1, typeAttr(t))
}

func (m *Metrics) recordInvocation(ctx context.Context, t research.ExecutorType, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.executorDuration.Record(ctx, d.Seconds(), typeAttr(t))
	if err != nil {
		m.failed.Add(ctx, 1, typeAttr(t))
	}
}

func (m *Metrics) recordPhase(ctx context.Context, phase int, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Int("phase", phase)))
}

// Tracer returns the lifecycle tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
