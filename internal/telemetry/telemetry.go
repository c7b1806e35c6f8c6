package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	logglobal "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the trace and meter providers for one process.
type Telemetry struct {
	cfg            Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	degraded       atomic.Bool
	shutdown       atomic.Bool
}

// exporters lets tests inject in-memory exporters.
type exporters struct {
	span   sdktrace.SpanExporter
	metric sdkmetric.Exporter
}

// New builds providers from cfg and installs them globally. A disabled
// config returns an instance backed by no-op providers.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	return newTelemetry(ctx, cfg, exporters{})
}

func newTelemetry(ctx context.Context, cfg Config, exp exporters) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	tp, err := newTracerProvider(ctx, cfg, res, exp.span)
	if err != nil {
		t.degraded.Store(true)
		return t, nil
	}
	mp, err := newMeterProvider(ctx, cfg, res, exp.metric)
	if err != nil {
		_ = tp.Shutdown(ctx)
		t.degraded.Store(true)
		return t, nil
	}
	t.tracerProvider = tp
	t.meterProvider = mp

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a named tracer.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return nooptrace.NewTracerProvider().Tracer(name)
	}
	return t.tracerProvider.Tracer(name)
}

// Meter returns a named meter.
func (t *Telemetry) Meter(name string) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return noopmetric.NewMeterProvider().Meter(name)
	}
	return t.meterProvider.Meter(name)
}

// LoggerProvider returns the global OTEL logger provider for the zap bridge.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	return logglobal.GetLoggerProvider()
}

// Enabled reports whether real providers are installed.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracerProvider != nil
}

// Degraded reports whether export was requested but could not be set up.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded.Load()
}

// ForceFlush exports pending spans and metrics.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return errors.Join(t.tracerProvider.ForceFlush(ctx), t.meterProvider.ForceFlush(ctx))
}

// Shutdown flushes and stops the providers. It is safe to call twice.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() || !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if t.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}
	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
	)
}
