// Package logging provides structured, context-aware logging for researchd.
//
// Logger wraps zap and pulls correlation fields out of the context on every
// call: the OpenTelemetry trace and span ids, the project id, the phase
// number and the executor type and id.
//
//	ctx = logging.WithProject(ctx, "acme-2026")
//	ctx = logging.WithPhase(ctx, 1)
//	logger.Info(ctx, "phase planned", zap.Int("tasks", 4))
//
// Output goes to stderr (stdout is reserved for CLI results) and, when an
// OpenTelemetry LoggerProvider is supplied, to the otelzap bridge as well.
// Credential fields are redacted by the encoder.
//
// A nil *Logger is valid and discards everything, so components can hold an
// optional logger without guarding each call.
//
// Tests use NewTestLogger, which records entries with zaptest/observer.
package logging
