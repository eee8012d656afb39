package main

import (
	"crypto/x509"
	"fmt"
	"os"

	securityTLS "mercator-hq/tlsrelay/pkg/security/tls"

	"github.com/spf13/cobra"
)

var certsValidateFlags struct {
	certFile    string
	keyFile     string
	caFile      string
	warningDays int
}

var certsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate certificate and key",
	Long: `Validate a TLS certificate and, optionally, its private key and chain.

Checks:
  - Certificate and key pair match (if --key provided)
  - Certificate chain verifies against a CA (if --ca provided)
  - Certificate is inside its validity window
  - Expiry warning when fewer than --warning-days remain

Examples:
  tlsrelay certs validate --cert server.crt --key server.key
  tlsrelay certs validate --cert server.crt --ca ca.pem`,
	RunE: validateCertificate,
}

func init() {
	certsCmd.AddCommand(certsValidateCmd)

	certsValidateCmd.Flags().StringVar(&certsValidateFlags.certFile, "cert", "", "certificate file (required)")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.keyFile, "key", "", "private key file")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.caFile, "ca", "", "CA certificate file")
	certsValidateCmd.Flags().IntVar(&certsValidateFlags.warningDays, "warning-days", 30, "warn when fewer days remain")

	_ = certsValidateCmd.MarkFlagRequired("cert")
}

func validateCertificate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating certificate: %s\n\n", certsValidateFlags.certFile)

	chain, err := securityTLS.LoadCertificateChain(certsValidateFlags.certFile)
	if err != nil {
		return err
	}
	leaf := chain[0]

	if certsValidateFlags.keyFile != "" {
		if _, err := securityTLS.LoadCredentialMaterial(certsValidateFlags.certFile, certsValidateFlags.keyFile); err != nil {
			fmt.Fprintln(out, "✗ Certificate and key do NOT match")
			return err
		}
		fmt.Fprintln(out, "✓ Certificate and key match")
	}

	if certsValidateFlags.caFile != "" {
		pool, err := loadCAPool(certsValidateFlags.caFile)
		if err != nil {
			return err
		}
		if err := securityTLS.ValidateCertificateChain(chain, pool); err != nil {
			fmt.Fprintln(out, "✗ Certificate chain invalid")
			return err
		}
		fmt.Fprintln(out, "✓ Certificate chain valid")
	}

	if err := securityTLS.ValidateX509Certificate(leaf); err != nil {
		fmt.Fprintf(out, "✗ %s\n", err)
		return err
	}
	fmt.Fprintf(out, "✓ Certificate within validity window (until %s)\n", leaf.NotAfter.Format("2006-01-02"))

	if _, warning := securityTLS.CheckCertificateExpiration(leaf, certsValidateFlags.warningDays); warning != "" {
		fmt.Fprintf(out, "⚠  %s\n", warning)
	}

	return nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no CA certificates found in %s", caFile)
	}
	return pool, nil
}
