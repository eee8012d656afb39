// Package telemetry groups the observability packages used by tlsrelay.
//
// # Components
//
//   - logging: slog setup, connection-scoped fields, head line redaction
//   - metrics: Prometheus metrics collection
//   - tracing: OpenTelemetry spans per connection
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.ConnectionOpened()
//	defer collector.ConnectionClosed("success")
//
//	ctx, span := tracer.Start(ctx, "relay.connection")
//	defer span.End()
//
// Logging of client request heads is off by default. When enabled, header
// values that commonly carry credentials are redacted before they are
// written.
package telemetry
