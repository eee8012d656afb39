package main

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/tlsrelay/pkg/cli"
	securityTLS "mercator-hq/tlsrelay/pkg/security/tls"

	"github.com/spf13/cobra"
)

var infoFlags struct {
	format      string
	warningDays int
}

var certsInfoCmd = &cobra.Command{
	Use:   "info [cert-file]",
	Short: "Display certificate details",
	Long: `Display the subject, issuer, validity window, SANs and algorithms
of the leaf certificate in a PEM file.

Examples:
  tlsrelay certs info certs/cert.pem
  tlsrelay certs info --format json certs/cert.pem`,
	Args: cobra.ExactArgs(1),
	RunE: displayCertInfo,
}

func init() {
	certsCmd.AddCommand(certsInfoCmd)

	certsInfoCmd.Flags().StringVar(&infoFlags.format, "format", "text", "output format: text, json")
	certsInfoCmd.Flags().IntVar(&infoFlags.warningDays, "warning-days", 30, "warn when fewer days remain")
}

// certReport is the printable form of a certificate.
type certReport struct {
	File string `json:"file"`
	*securityTLS.CertificateInfo
	DaysRemaining int    `json:"days_remaining"`
	Status        string `json:"status"`
	Warning       string `json:"warning,omitempty"`
}

func (r certReport) Fields() []cli.Field {
	fields := []cli.Field{
		{Key: "Certificate", Value: r.File},
		{Key: "Subject", Value: r.Subject},
		{Key: "Issuer", Value: r.Issuer},
		{Key: "Serial", Value: r.SerialNumber},
		{Key: "Not Before", Value: r.NotBefore.Format(time.RFC3339)},
		{Key: "Not After", Value: r.NotAfter.Format(time.RFC3339)},
		{Key: "Status", Value: r.Status},
	}
	if len(r.DNSNames) > 0 {
		fields = append(fields, cli.Field{Key: "DNS Names", Value: strings.Join(r.DNSNames, ", ")})
	}
	if len(r.IPAddresses) > 0 {
		fields = append(fields, cli.Field{Key: "IP Addresses", Value: strings.Join(r.IPAddresses, ", ")})
	}
	fields = append(fields,
		cli.Field{Key: "Signature", Value: r.SignatureAlgorithm},
		cli.Field{Key: "Public Key", Value: r.PublicKeyAlgorithm},
	)
	if r.Warning != "" {
		fields = append(fields, cli.Field{Key: "Warning", Value: r.Warning})
	}
	return fields
}

func newCertReport(file string, warningDays int) (*certReport, error) {
	chain, err := securityTLS.LoadCertificateChain(file)
	if err != nil {
		return nil, err
	}
	leaf := chain[0]

	days, warning := securityTLS.CheckCertificateExpiration(leaf, warningDays)
	status := fmt.Sprintf("valid (%d days remaining)", days)
	if err := securityTLS.ValidateX509Certificate(leaf); err != nil {
		status = err.Error()
	}

	return &certReport{
		File:            file,
		CertificateInfo: securityTLS.ExtractCertificateInfo(leaf),
		DaysRemaining:   days,
		Status:          status,
		Warning:         warning,
	}, nil
}

func displayCertInfo(cmd *cobra.Command, args []string) error {
	f, err := cli.NewFormatter(infoFlags.format)
	if err != nil {
		return err
	}
	report, err := newCertReport(args[0], infoFlags.warningDays)
	if err != nil {
		return err
	}
	return f.FormatTo(cmd.OutOrStdout(), report)
}
