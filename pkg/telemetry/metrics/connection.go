package metrics

import (
	"time"

	"mercator-hq/tlsrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionMetrics tracks metrics related to relayed connections.
//
// Metrics:
//   - tlsrelay_connections_total: Closed connections by final outcome
//   - tlsrelay_connections_active: Connections currently being handled
//   - tlsrelay_stage_duration_seconds: Duration of each connection stage
//   - tlsrelay_upstream_responses_total: Upstream results by status class
//   - tlsrelay_response_bytes: Size of responses written to clients
//   - tlsrelay_admission_waits_total: Times accepting was delayed by admission limits
type ConnectionMetrics struct {
	connectionsTotal *prometheus.CounterVec
	activeGauge      prometheus.Gauge
	stageDuration    *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	responseBytes    prometheus.Histogram
	admissionWaits   *prometheus.CounterVec
}

// NewConnectionMetrics creates and registers connection metrics with the provided registry.
func NewConnectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConnectionMetrics {
	cm := &ConnectionMetrics{
		connectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "connections_total",
				Help:      "Total number of connections handled, by final outcome",
			},
			[]string{"outcome"},
		),

		activeGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "connections_active",
				Help:      "Number of connections currently being handled",
			},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of connection stages in seconds",
				Buckets:   cfg.StageDurationBuckets,
			},
			[]string{"stage"},
		),

		upstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_responses_total",
				Help:      "Total upstream fetches by result class",
			},
			[]string{"class"},
		),

		responseBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "response_bytes",
				Help:      "Size of responses written to clients in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
			},
		),

		admissionWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "admission_waits_total",
				Help:      "Times accepting a connection was delayed by an admission limit",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		cm.connectionsTotal,
		cm.activeGauge,
		cm.stageDuration,
		cm.upstreamTotal,
		cm.responseBytes,
		cm.admissionWaits,
	)

	return cm
}

// RecordOutcome counts one closed connection.
func (cm *ConnectionMetrics) RecordOutcome(outcome string) {
	cm.connectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage observes the duration of one stage.
func (cm *ConnectionMetrics) RecordStage(stage string, d time.Duration) {
	cm.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordUpstream counts one upstream result.
func (cm *ConnectionMetrics) RecordUpstream(class string) {
	cm.upstreamTotal.WithLabelValues(class).Inc()
}

// RecordResponseBytes observes one written response.
func (cm *ConnectionMetrics) RecordResponseBytes(n int) {
	cm.responseBytes.Observe(float64(n))
}

// RecordAdmissionWait counts one delayed accept.
func (cm *ConnectionMetrics) RecordAdmissionWait(reason string) {
	cm.admissionWaits.WithLabelValues(reason).Inc()
}
