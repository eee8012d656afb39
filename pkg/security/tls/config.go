package tls

import (
	"crypto/tls"
	"fmt"
)

// Config represents the TLS server settings for the relay listener.
// Client certificate authentication is never requested.
type Config struct {
	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3")
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites is a list of enabled cipher suites
	// If empty, Go's default secure cipher suites are used
	CipherSuites []string `yaml:"cipher_suites"`
}

// ServerTLSConfig builds the single server-side tls.Config shared by every
// connection. The returned value is never mutated after construction and the
// certificate is never swapped at runtime.
func (c *Config) ServerTLSConfig(cred *CredentialMaterial) (*tls.Config, error) {
	if cred == nil {
		return nil, fmt.Errorf("credential material is required")
	}

	cert, err := cred.Certificate()
	if err != nil {
		return nil, fmt.Errorf("failed to build certificate: %w", err)
	}

	minVersion, err := c.parseTLSVersion()
	if err != nil {
		return nil, err
	}

	suites, err := c.parseCipherSuites()
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is validated (TLS 1.0/1.1 rejected)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   minVersion,
		CipherSuites: suites,
	}, nil
}

// parseTLSVersion converts the MinVersion string to a tls.Version constant.
// Supported versions: "1.2" (default), "1.3"
// TLS 1.0 and 1.1 are not supported due to security concerns.
func (c *Config) parseTLSVersion() (uint16, error) {
	switch c.MinVersion {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q (must be 1.2 or 1.3)", c.MinVersion)
	}
}

// parseCipherSuites converts cipher suite names to tls.CipherSuite constants.
// If no cipher suites are specified, returns nil to use Go's secure defaults.
func (c *Config) parseCipherSuites() ([]uint16, error) {
	if len(c.CipherSuites) == 0 {
		return nil, nil
	}

	suites := make([]uint16, 0, len(c.CipherSuites))
	for _, suite := range c.CipherSuites {
		id, ok := cipherSuiteMap[suite]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", suite)
		}
		suites = append(suites, id)
	}

	return suites, nil
}

// cipherSuiteMap maps cipher suite names to their tls package constants.
// Only secure cipher suites are included.
var cipherSuiteMap = map[string]uint16{
	// TLS 1.3 cipher suites (always enabled, cannot be disabled)
	"TLS_AES_128_GCM_SHA256":       tls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":       tls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256": tls.TLS_CHACHA20_POLY1305_SHA256,

	// TLS 1.2 cipher suites (secure options only)
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}
