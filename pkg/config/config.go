package config

import "time"

// Config is the root configuration structure for tlsrelay.
// It contains the relay listener, the fixed upstream target, TLS credential
// settings, telemetry, the admin server and the connection journal.
type Config struct {
	// Listener contains the TLS relay listener configuration including
	// listen address, per-stage timeouts and admission limits.
	Listener ListenerConfig `yaml:"listener"`

	// Upstream contains the single fixed upstream the relay always contacts.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Security contains the TLS credential configuration.
	Security SecurityConfig `yaml:"security"`

	// Telemetry contains configuration for logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Admin contains the HTTP admin server configuration (metrics and health).
	Admin AdminConfig `yaml:"admin"`

	// Journal contains the per-connection audit journal configuration.
	Journal JournalConfig `yaml:"journal"`
}

// ListenerConfig contains configuration for the TLS relay listener.
type ListenerConfig struct {
	// ListenAddress is the address and port for the relay to listen on.
	// Format: "host:port".
	// Default: "0.0.0.0:3000"
	ListenAddress string `yaml:"listen_address"`

	// HandshakeTimeout bounds the TLS handshake. Zero disables the bound.
	// Default: 0 (no timeout)
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ReadTimeout bounds reading the request head. Zero disables the bound.
	// Default: 0 (no timeout)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Zero disables the bound.
	// Default: 0 (no timeout)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeadBytes caps the size of the request head. Zero selects the
	// default; UnlimitedHeadBytes (-1) removes the cap.
	// Default: 1048576 (1MB)
	MaxHeadBytes int `yaml:"max_head_bytes"`

	// MaxConnections caps concurrently handled connections. Zero means unlimited.
	// Default: 0
	MaxConnections int `yaml:"max_connections"`

	// AcceptRate is the sustained number of connections admitted per second.
	// Zero disables admission limiting.
	// Default: 0
	AcceptRate float64 `yaml:"accept_rate"`

	// AcceptBurst is the admission limiter burst size.
	// Default: 1 when AcceptRate is set
	AcceptBurst int `yaml:"accept_burst"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// connections during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HeadLimit returns the request head cap in the form the relay reader takes,
// where zero means no limit.
func (c *ListenerConfig) HeadLimit() int {
	if c.MaxHeadBytes == UnlimitedHeadBytes {
		return 0
	}
	return c.MaxHeadBytes
}

// UpstreamConfig contains configuration for the fixed upstream target.
type UpstreamConfig struct {
	// URL is the absolute URL fetched once per accepted connection.
	// Default: "https://www.google.com/"
	URL string `yaml:"url"`

	// Timeout bounds the whole upstream exchange. Zero disables the bound.
	// Default: 0 (no timeout)
	Timeout time.Duration `yaml:"timeout"`

	// CAFile is an optional PEM bundle of additional roots trusted for the
	// upstream. System roots are used when empty.
	CAFile string `yaml:"ca_file"`

	// MaxBodyBytes caps the upstream body. Zero means unlimited.
	// Default: 0
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// AllowInsecureScheme permits a plain http:// upstream URL.
	// Intended for local testing only.
	// Default: false
	AllowInsecureScheme bool `yaml:"allow_insecure_scheme"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS contains the server certificate configuration.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS server configuration.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3").
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites is a list of enabled TLS 1.2 cipher suites.
	// If empty, Go's default secure cipher suites are used.
	CipherSuites []string `yaml:"cipher_suites"`

	// WatchFiles logs a warning when the certificate or key files change on
	// disk. Credentials are never reloaded at runtime.
	// Default: false
	WatchFiles bool `yaml:"watch_files"`

	// ExpiryCheckSchedule is the cron schedule for certificate expiry checks.
	// Use "off" to disable.
	// Default: "@every 24h"
	ExpiryCheckSchedule string `yaml:"expiry_check_schedule"`

	// ExpiryWarningDays is the number of days before expiry at which a
	// warning is logged.
	// Default: 30
	ExpiryWarningDays int `yaml:"expiry_warning_days"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// LogRequestHead logs the inbound request head lines at debug level.
	// Default: false
	LogRequestHead bool `yaml:"log_request_head"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Path is the HTTP path for the Prometheus metrics endpoint on the admin server.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "tlsrelay"
	Namespace string `yaml:"namespace"`

	// StageDurationBuckets defines histogram buckets for stage durations (seconds).
	// Default: [0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	StageDurationBuckets []float64 `yaml:"stage_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for span exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service name in traces.
	// Default: "tlsrelay"
	ServiceName string `yaml:"service_name"`
}

// AdminConfig contains the admin HTTP server configuration.
type AdminConfig struct {
	// Enabled controls whether the admin server is started.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the admin server address.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`
}

// JournalConfig contains the connection journal configuration.
type JournalConfig struct {
	// Enabled controls whether connection records are journaled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend ("memory" or "sqlite").
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path when Backend is "sqlite".
	// Default: "data/journal.db"
	SQLitePath string `yaml:"sqlite_path"`

	// AsyncBuffer is the size of the recorder's write channel.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single journal write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long records are kept. A negative value keeps
	// records forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron schedule for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}
