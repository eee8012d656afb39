package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "listener.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Certificate and key paths are not required here: the run command checks
// them once flag overrides have been applied.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateListener(&cfg.Listener)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateListener validates listener configuration.
func validateListener(cfg *ListenerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "listener.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "listener.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}

	if cfg.HandshakeTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.handshake_timeout",
			Message: "handshake timeout must not be negative",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.read_timeout",
			Message: "read timeout must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.shutdown_timeout",
			Message: "shutdown timeout must not be negative",
		})
	}

	if cfg.MaxHeadBytes < UnlimitedHeadBytes {
		errs = append(errs, FieldError{
			Field:   "listener.max_head_bytes",
			Message: "max head bytes must be non-negative, or -1 for no limit",
		})
	}
	if cfg.MaxHeadBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "listener.max_head_bytes",
			Message: "max head bytes exceeds reasonable limit (10MB)",
		})
	}
	if cfg.MaxConnections < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.max_connections",
			Message: "max connections must be non-negative",
		})
	}
	if cfg.AcceptRate < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.accept_rate",
			Message: "accept rate must be non-negative",
		})
	}
	if cfg.AcceptBurst < 0 {
		errs = append(errs, FieldError{
			Field:   "listener.accept_burst",
			Message: "accept burst must be non-negative",
		})
	}

	return errs
}

// validateUpstream validates the fixed upstream target.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: "upstream URL is required",
		})
	} else {
		u, err := url.Parse(cfg.URL)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		case u.Host == "":
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: "URL must be absolute",
			})
		case u.Scheme == "https":
		case u.Scheme == "http" && cfg.AllowInsecureScheme:
		default:
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: fmt.Sprintf("unsupported scheme %q (must be https)", u.Scheme),
			})
		}
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "timeout must not be negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	return errs
}

// validateSecurity validates TLS settings that can be checked without files.
func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	switch cfg.TLS.MinVersion {
	case "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "security.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q (must be 1.2 or 1.3)", cfg.TLS.MinVersion),
		})
	}

	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		errs = append(errs, FieldError{
			Field:   "security.tls",
			Message: "cert_file and key_file must be set together",
		})
	}

	if cfg.TLS.ExpiryWarningDays < 0 {
		errs = append(errs, FieldError{
			Field:   "security.tls.expiry_warning_days",
			Message: "expiry warning days must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.StageDurationBuckets); i++ {
		if cfg.Metrics.StageDurationBuckets[i] <= cfg.Metrics.StageDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.stage_duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}

// validateAdmin validates the admin server configuration.
func validateAdmin(cfg *AdminConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return []FieldError{{
			Field:   "admin.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		}}
	}
	return nil
}

// validateJournal validates the connection journal configuration.
func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite_path",
				Message: "sqlite path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("unsupported backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.write_timeout",
			Message: "write timeout must not be negative",
		})
	}

	return errs
}
