// Package server provides the tlsrelay admin HTTP server.
//
// The admin server is separate from the relay listener and never touches
// relayed traffic. It exposes:
//
//   - /metrics (or MetricsConfig.Path): Prometheus metrics
//   - /health: liveness
//   - /ready: readiness, backed by health.Checker
//   - /version: build information
//
// # Usage
//
//	admin := server.New(server.Options{
//		ListenAddress: cfg.Admin.ListenAddress,
//		MetricsPath:   cfg.Telemetry.Metrics.Path,
//		Metrics:       collector,
//		Checker:       checker,
//		Version:       version,
//		Logger:        logger,
//	})
//	go admin.Start(ctx)
//
// Start blocks until ctx is cancelled, then shuts the server down with
// ShutdownTimeout.
package server
