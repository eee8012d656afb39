// Package metrics provides Prometheus metrics collection for tlsrelay.
//
// # Metrics
//
//   - tlsrelay_connections_total{outcome}: closed connections by outcome
//   - tlsrelay_connections_active: connections currently being handled
//   - tlsrelay_stage_duration_seconds{stage}: handshake, read, dispatch, write
//   - tlsrelay_upstream_responses_total{class}: upstream status classes
//   - tlsrelay_response_bytes: bytes written per response
//   - tlsrelay_admission_waits_total{reason}: accepts delayed by limits
//   - tlsrelay_certificate_expiry_days: days left on the served certificate
//   - tlsrelay_credential_file_events_total{op}: credential file changes
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
