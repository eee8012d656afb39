package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "TLSRELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TLSRELAY_SECTION_FIELD (e.g., TLSRELAY_LISTENER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// When optional is true a missing file is not an error and the defaults are
// used as the base instead.
func LoadConfigWithEnvOverrides(path string, optional bool) (*Config, error) {
	var cfg *Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

type lookupFunc func(string) (string, bool)

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric, boolean or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
				return
			}
			*dst = i
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
				return
			}
			*dst = b
		}
	}

	// Listener overrides
	str("LISTENER_LISTEN_ADDRESS", &cfg.Listener.ListenAddress)
	if v, ok := lookup(EnvPrefix + "PORT"); ok && v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil || port == 0 {
			errs = append(errs, FieldError{Field: EnvPrefix + "PORT", Message: "must be a port number between 1 and 65535"})
		} else {
			cfg.Listener.ListenAddress = ListenAddressForPort(int(port))
		}
	}
	dur("LISTENER_HANDSHAKE_TIMEOUT", &cfg.Listener.HandshakeTimeout)
	dur("LISTENER_READ_TIMEOUT", &cfg.Listener.ReadTimeout)
	dur("LISTENER_WRITE_TIMEOUT", &cfg.Listener.WriteTimeout)
	integer("LISTENER_MAX_HEAD_BYTES", &cfg.Listener.MaxHeadBytes)
	integer("LISTENER_MAX_CONNECTIONS", &cfg.Listener.MaxConnections)

	// Upstream overrides
	str("UPSTREAM_URL", &cfg.Upstream.URL)
	dur("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	str("UPSTREAM_CA_FILE", &cfg.Upstream.CAFile)

	// Security overrides
	str("SECURITY_TLS_CERT_FILE", &cfg.Security.TLS.CertFile)
	str("SECURITY_TLS_KEY_FILE", &cfg.Security.TLS.KeyFile)
	str("SECURITY_TLS_MIN_VERSION", &cfg.Security.TLS.MinVersion)
	boolean("SECURITY_TLS_WATCH_FILES", &cfg.Security.TLS.WatchFiles)

	// Telemetry overrides
	str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	// Admin overrides
	boolean("ADMIN_ENABLED", &cfg.Admin.Enabled)
	str("ADMIN_LISTEN_ADDRESS", &cfg.Admin.ListenAddress)

	// Journal overrides
	boolean("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	str("JOURNAL_BACKEND", &cfg.Journal.Backend)
	str("JOURNAL_SQLITE_PATH", &cfg.Journal.SQLitePath)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// ListenAddressForPort returns the all-interfaces listen address for port.
func ListenAddressForPort(port int) string {
	return "0.0.0.0:" + strconv.Itoa(port)
}

