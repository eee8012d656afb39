package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCertificate is returned when no CERTIFICATE block is present.
	ErrNoCertificate = errors.New("no certificate found")

	// ErrNoPrivateKey is returned when no private key block is present.
	ErrNoPrivateKey = errors.New("no private key found")

	// ErrKeyMismatch is returned when the private key does not match the
	// leaf certificate's public key.
	ErrKeyMismatch = errors.New("private key does not match certificate")
)

// CredentialMaterial is the server's certificate chain and private key.
// It is loaded once per process and shared read-only by every connection.
type CredentialMaterial struct {
	// CertificateChain holds DER certificates, leaf first.
	CertificateChain [][]byte

	// PrivateKey holds the PKCS#8 DER encoding of the leaf's private key.
	PrivateKey []byte
}

// LoadCredentialMaterial reads a PEM certificate chain and a PEM private key
// from disk. Every CERTIFICATE block in certFile is kept in order; the first
// private key block in keyFile is used. PKCS#1, SEC 1 (EC) and PKCS#8 keys
// are accepted and normalized to PKCS#8.
func LoadCredentialMaterial(certFile, keyFile string) (*CredentialMaterial, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file %s: %w", certFile, err)
	}

	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyFile, err)
	}

	cred, err := ParseCredentialPEM(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials in %s / %s: %w", certFile, keyFile, err)
	}

	return cred, nil
}

// ParseCredentialPEM decodes PEM-encoded certificate and key material.
func ParseCredentialPEM(certPEM, keyPEM []byte) (*CredentialMaterial, error) {
	var chain [][]byte
	for rest := certPEM; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, ErrNoCertificate
	}

	var key crypto.PrivateKey
	for rest := keyPEM; key == nil; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoPrivateKey
		}

		switch block.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			k, err := parsePrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			key = k
		}
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	return NewCredentialMaterial(chain, der)
}

// NewCredentialMaterial validates and copies a DER chain and a PKCS#8 DER key.
func NewCredentialMaterial(chain [][]byte, pkcs8Key []byte) (*CredentialMaterial, error) {
	if len(chain) == 0 {
		return nil, ErrNoCertificate
	}
	if len(pkcs8Key) == 0 {
		return nil, ErrNoPrivateKey
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
	}

	key, err := x509.ParsePKCS8PrivateKey(pkcs8Key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	if err := matchKey(leaf, key); err != nil {
		return nil, err
	}

	cred := &CredentialMaterial{
		CertificateChain: make([][]byte, len(chain)),
		PrivateKey:       append([]byte(nil), pkcs8Key...),
	}
	for i, der := range chain {
		cred.CertificateChain[i] = append([]byte(nil), der...)
	}

	return cred, nil
}

// Certificate returns the material as a tls.Certificate with Leaf populated.
func (c *CredentialMaterial) Certificate() (tls.Certificate, error) {
	key, err := x509.ParsePKCS8PrivateKey(c.PrivateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse private key: %w", err)
	}

	leaf, err := c.Leaf()
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: c.CertificateChain,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// Leaf parses and returns the first certificate of the chain.
func (c *CredentialMaterial) Leaf() (*x509.Certificate, error) {
	if len(c.CertificateChain) == 0 {
		return nil, ErrNoCertificate
	}
	leaf, err := x509.ParseCertificate(c.CertificateChain[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
	}
	return leaf, nil
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key encoding")
}

// matchKey verifies the private key corresponds to the leaf public key.
func matchKey(leaf *x509.Certificate, key crypto.PrivateKey) error {
	switch pub := leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok || !priv.PublicKey.Equal(pub) {
			return ErrKeyMismatch
		}
	case *ecdsa.PublicKey:
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok || !priv.PublicKey.Equal(pub) {
			return ErrKeyMismatch
		}
	case ed25519.PublicKey:
		priv, ok := key.(ed25519.PrivateKey)
		if !ok || !pub.Equal(priv.Public()) {
			return ErrKeyMismatch
		}
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
	return nil
}
