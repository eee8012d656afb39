package main

import (
	"fmt"
	"os"

	"mercator-hq/tlsrelay/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tlsrelay",
	Short: "tlsrelay - TLS-terminating single-upstream relay",
	Long: `tlsrelay accepts TLS connections, reads one request head from each,
performs one HTTPS GET against a fixed upstream and writes the result back
over the same encrypted connection.

A 2xx upstream response is relayed as "200 OK" with the upstream body. Any
other outcome is answered with a fixed "500 Internal Server Error".`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
