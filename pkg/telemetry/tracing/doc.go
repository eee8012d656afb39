// Package tracing provides OpenTelemetry tracing for relayed connections.
//
// Each accepted connection gets one root span ("relay.connection") with a
// child span per stage: handshake, read, dispatch and write. Spans are
// exported over OTLP gRPC when telemetry.tracing.enabled is set; otherwise a
// noop tracer is used.
//
// Trace context is never injected into the upstream request: the upstream
// GET carries no custom headers.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(ctx)
package tracing
