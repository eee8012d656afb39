package metrics

import (
	"mercator-hq/tlsrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CredentialMetrics tracks the served certificate and its files.
type CredentialMetrics struct {
	expiryDays prometheus.Gauge
	fileEvents *prometheus.CounterVec
}

// NewCredentialMetrics creates and registers credential metrics.
func NewCredentialMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CredentialMetrics {
	cm := &CredentialMetrics{
		expiryDays: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "certificate_expiry_days",
				Help:      "Days until the served certificate expires",
			},
		),
		fileEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "credential_file_events_total",
				Help:      "Changes observed on the certificate and key files",
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(cm.expiryDays, cm.fileEvents)

	return cm
}
