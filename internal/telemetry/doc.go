// Package telemetry sets up OpenTelemetry trace and metric export for
// researchd.
//
// New installs global providers so instrumented packages (lifecycle,
// orchestrator) can use otel.Tracer and otel.Meter without plumbing.
// Export failures never stop a run: a provider that cannot be built leaves
// the instance degraded and the global no-op provider in place.
//
// Supported protocols are "grpc" (default, port 4317) and "http/protobuf"
// (port 4318). Insecure transport is accepted only for loopback endpoints.
package telemetry
