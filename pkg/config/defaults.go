package config

import "time"

// Default values for configuration fields.
const (
	// Listener defaults
	DefaultListenAddress   = "0.0.0.0:3000"
	DefaultListenPort      = 3000
	DefaultMaxHeadBytes    = 1048576 // 1MB
	UnlimitedHeadBytes     = -1
	DefaultAcceptBurst     = 1
	DefaultShutdownTimeout = 30 * time.Second

	// Upstream defaults
	DefaultUpstreamURL = "https://www.google.com/"

	// Security defaults
	DefaultTLSMinVersion       = "1.2"
	DefaultExpiryCheckSchedule = "@every 24h"
	DefaultExpiryWarningDays   = 30

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "tlsrelay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "tlsrelay"

	// Admin defaults
	DefaultAdminListenAddress = "127.0.0.1:9090"

	// Journal defaults
	DefaultJournalBackend       = "memory"
	DefaultJournalSQLitePath    = "data/journal.db"
	DefaultJournalAsyncBuffer   = 1000
	DefaultJournalWriteTimeout  = 5 * time.Second
	DefaultJournalRetentionDays = 30
	DefaultJournalPruneSchedule = "0 3 * * *"
)

// ExpiryCheckDisabled disables the scheduled certificate expiry check when
// used as TLSConfig.ExpiryCheckSchedule.
const ExpiryCheckDisabled = "off"

// DefaultStageDurationBuckets are the histogram buckets used for per-stage
// connection durations when none are configured.
var DefaultStageDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Listener defaults
	if cfg.Listener.ListenAddress == "" {
		cfg.Listener.ListenAddress = DefaultListenAddress
	}
	if cfg.Listener.MaxHeadBytes == 0 {
		cfg.Listener.MaxHeadBytes = DefaultMaxHeadBytes
	}
	if cfg.Listener.AcceptRate > 0 && cfg.Listener.AcceptBurst == 0 {
		cfg.Listener.AcceptBurst = DefaultAcceptBurst
	}
	if cfg.Listener.ShutdownTimeout == 0 {
		cfg.Listener.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Upstream defaults
	if cfg.Upstream.URL == "" {
		cfg.Upstream.URL = DefaultUpstreamURL
	}

	// Security defaults
	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Security.TLS.ExpiryCheckSchedule == "" {
		cfg.Security.TLS.ExpiryCheckSchedule = DefaultExpiryCheckSchedule
	}
	if cfg.Security.TLS.ExpiryWarningDays == 0 {
		cfg.Security.TLS.ExpiryWarningDays = DefaultExpiryWarningDays
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.StageDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.StageDurationBuckets = append([]float64(nil), DefaultStageDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultAdminListenAddress
	}

	// Journal defaults
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.SQLitePath == "" {
		cfg.Journal.SQLitePath = DefaultJournalSQLitePath
	}
	if cfg.Journal.AsyncBuffer == 0 {
		cfg.Journal.AsyncBuffer = DefaultJournalAsyncBuffer
	}
	if cfg.Journal.WriteTimeout == 0 {
		cfg.Journal.WriteTimeout = DefaultJournalWriteTimeout
	}
	if cfg.Journal.RetentionDays == 0 {
		cfg.Journal.RetentionDays = DefaultJournalRetentionDays
	}
	if cfg.Journal.PruneSchedule == "" {
		cfg.Journal.PruneSchedule = DefaultJournalPruneSchedule
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
