package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	projectCtxKey  struct{}
	phaseCtxKey    struct{}
	executorCtxKey struct{}
	runCtxKey      struct{}
	loggerCtxKey   struct{}
)

type executorInfo struct {
	typ string
	id  string
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 8)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if id := ProjectFromContext(ctx); id != "" {
		fields = append(fields, zap.String("project.id", id))
	}
	if n := PhaseFromContext(ctx); n > 0 {
		fields = append(fields, zap.Int("phase", n))
	}
	if e, ok := ctx.Value(executorCtxKey{}).(executorInfo); ok {
		fields = append(fields, zap.String("executor.type", e.typ))
		if e.id != "" {
			fields = append(fields, zap.String("executor.id", e.id))
		}
	}
	return fields
}

// WithProject adds the project id to context.
func WithProject(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, projectID)
}

// ProjectFromContext returns the project id, or "".
func ProjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(projectCtxKey{}).(string)
	return s
}

// WithPhase adds the phase number to context.
func WithPhase(ctx context.Context, phase int) context.Context {
	return context.WithValue(ctx, phaseCtxKey{}, phase)
}

// PhaseFromContext returns the phase number, or 0.
func PhaseFromContext(ctx context.Context) int {
	n, _ := ctx.Value(phaseCtxKey{}).(int)
	return n
}

// WithExecutor adds the executor type and id to context.
func WithExecutor(ctx context.Context, executorType, executorID string) context.Context {
	return context.WithValue(ctx, executorCtxKey{}, executorInfo{typ: executorType, id: executorID})
}

// WithRunID adds a run id to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run id, or "".
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
