package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage TLS certificates",
	Long: `Manage the TLS certificate served by the relay.

Subcommands:
  validate - Validate certificate and key pair
  info     - Display certificate details
  generate - Generate self-signed certificate for testing

Examples:
  # Validate certificate and key
  tlsrelay certs validate --cert server.crt --key server.key

  # Display certificate information
  tlsrelay certs info server.crt

  # Generate self-signed certificate for testing
  tlsrelay certs generate --host localhost`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
