package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// TestTelemetry records spans and metrics in memory for assertions.
type TestTelemetry struct {
	Spans          *tracetest.SpanRecorder
	Reader         *sdkmetric.ManualReader
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewTestTelemetry returns in-memory providers shut down at test cleanup.
// Nothing is installed globally.
func NewTestTelemetry(t testing.TB) *TestTelemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tt := &TestTelemetry{
		Spans:          spans,
		Reader:         reader,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = tt.TracerProvider.Shutdown(ctx)
		_ = tt.MeterProvider.Shutdown(ctx)
	})
	return tt
}

// Tracer returns a recording tracer.
func (tt *TestTelemetry) Tracer(name string) trace.Tracer {
	return tt.TracerProvider.Tracer(name)
}

// Meter returns a meter read by Reader.
func (tt *TestTelemetry) Meter(name string) metric.Meter {
	return tt.MeterProvider.Meter(name)
}

// SpanNames returns the names of ended spans in end order.
func (tt *TestTelemetry) SpanNames() []string {
	ended := tt.Spans.Ended()
	names := make([]string, 0, len(ended))
	for _, s := range ended {
		names = append(names, s.Name())
	}
	return names
}

// CountSpans counts ended spans called name.
func (tt *TestTelemetry) CountSpans(name string) int {
	n := 0
	for _, s := range tt.Spans.Ended() {
		if s.Name() == name {
			n++
		}
	}
	return n
}

// Sum totals an int64 counter across data points whose attributes include
// every key/value in attrs.
func (tt *TestTelemetry) Sum(t testing.TB, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tt.Reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttrs(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}
