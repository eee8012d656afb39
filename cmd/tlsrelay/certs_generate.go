package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	securityTLS "mercator-hq/tlsrelay/pkg/security/tls"

	"github.com/spf13/cobra"
)

var generateFlags struct {
	hosts    string
	org      string
	validity int
	keySize  int
	output   string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate self-signed certificate",
	Long: `Generate a self-signed TLS certificate and PKCS#8 private key for
development and testing. Writes cert.pem and key.pem (mode 0600) to the
output directory.

Self-signed certificates are for TESTING ONLY.

Examples:
  # Generate certificate for localhost
  tlsrelay certs generate --host localhost

  # Generate with multiple hosts
  tlsrelay certs generate --host "localhost,127.0.0.1,relay.local" --output certs/`,
	RunE: generateCertificate,
}

func init() {
	certsCmd.AddCommand(certsGenerateCmd)

	certsGenerateCmd.Flags().StringVar(&generateFlags.hosts, "host", "localhost", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&generateFlags.org, "org", "tlsrelay", "organization name")
	certsGenerateCmd.Flags().IntVar(&generateFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&generateFlags.keySize, "key-size", 2048, "RSA key size (2048, 3072, 4096)")
	certsGenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "certs", "output directory")
}

func generateCertificate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var hosts []string
	for _, h := range strings.Split(generateFlags.hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}

	certPEM, keyPEM, err := securityTLS.GenerateSelfSigned(securityTLS.SelfSignedOptions{
		Hosts:        hosts,
		Organization: generateFlags.org,
		Validity:     time.Duration(generateFlags.validity) * 24 * time.Hour,
		KeySize:      generateFlags.keySize,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(generateFlags.output, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath := filepath.Join(generateFlags.output, "cert.pem")
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	keyPath := filepath.Join(generateFlags.output, "key.pem")
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	fmt.Fprintf(out, "✓ Certificate generated: %s\n", certPath)
	fmt.Fprintf(out, "✓ Private key generated: %s\n", keyPath)
	fmt.Fprintf(out, "  Hosts: %s\n", strings.Join(hosts, ", "))
	fmt.Fprintf(out, "  Validity: %d days, RSA %d bits\n", generateFlags.validity, generateFlags.keySize)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "⚠️  Self-signed certificates are for TESTING ONLY")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Start the relay with:")
	fmt.Fprintf(out, "  tlsrelay run --cert %s --key %s\n", certPath, keyPath)

	return nil
}
