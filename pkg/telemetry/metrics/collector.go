package metrics

import (
	"time"

	"mercator-hq/tlsrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector is the main orchestrator for all Prometheus metrics in tlsrelay.
// It manages metric registration and provides a unified interface for
// recording metrics across components.
//
// All recording methods are safe to call on a nil *Collector, which records
// nothing. Components can therefore be constructed without metrics in tests.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	connections *ConnectionMetrics
	credentials *CredentialMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created with
// the Go runtime and process collectors attached.
//
// Example:
//
//	cfg := &config.MetricsConfig{Namespace: "tlsrelay"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.StageDurationBuckets) == 0 {
		cfg.StageDurationBuckets = config.DefaultStageDurationBuckets
	}

	return &Collector{
		config:      cfg,
		registry:    registry,
		connections: NewConnectionMetrics(cfg, registry),
		credentials: NewCredentialMetrics(cfg, registry),
	}
}

// ConnectionOpened increments the active connection gauge.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.activeGauge.Inc()
}

// ConnectionClosed decrements the active connection gauge and counts the
// connection under its final outcome.
//
// Outcomes: "success", "upstream_error", "upstream_unreachable",
// "read_error", "handshake_error", "write_error", "panic".
func (c *Collector) ConnectionClosed(outcome string) {
	if c == nil {
		return
	}
	c.connections.activeGauge.Dec()
	c.connections.RecordOutcome(outcome)
}

// RecordStage records the duration of a connection stage
// ("handshake", "read", "dispatch", "write").
func (c *Collector) RecordStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.connections.RecordStage(stage, d)
}

// RecordUpstream records an upstream result class ("2xx" through "5xx",
// or "transport_error").
func (c *Collector) RecordUpstream(class string) {
	if c == nil {
		return
	}
	c.connections.RecordUpstream(class)
}

// RecordResponseBytes records the size of a written response.
func (c *Collector) RecordResponseBytes(n int) {
	if c == nil {
		return
	}
	c.connections.RecordResponseBytes(n)
}

// RecordAdmissionWait records that accepting was delayed by an admission
// limit ("rate_limited" or "max_connections").
func (c *Collector) RecordAdmissionWait(reason string) {
	if c == nil {
		return
	}
	c.connections.RecordAdmissionWait(reason)
}

// SetCertificateExpiryDays updates the certificate expiry gauge.
func (c *Collector) SetCertificateExpiryDays(days float64) {
	if c == nil {
		return
	}
	c.credentials.expiryDays.Set(days)
}

// ObserveCredentialFileEvent counts a change to a credential file.
func (c *Collector) ObserveCredentialFileEvent(op string) {
	if c == nil {
		return
	}
	c.credentials.fileEvents.WithLabelValues(op).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
