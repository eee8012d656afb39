// Package config provides configuration management for tlsrelay.
//
// This package handles loading, validating, and defaulting configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("tlsrelay.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("tlsrelay.yaml", false)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TLSRELAY_SECTION_FIELD.
// For example:
//
//   - TLSRELAY_LISTENER_LISTEN_ADDRESS overrides listener.listen_address
//   - TLSRELAY_PORT sets listener.listen_address to 0.0.0.0:<port>
//   - TLSRELAY_UPSTREAM_URL overrides upstream.url
//   - TLSRELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Command line flags (applied by cmd/tlsrelay)
//  5. Validation (fails fast if invalid)
package config
