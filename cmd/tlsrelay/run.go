package main

import (
	"fmt"
	"log/slog"
	"net"

	"mercator-hq/tlsrelay/pkg/cli"
	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/telemetry/logging"

	"github.com/spf13/cobra"
)

var runFlags struct {
	port     int
	listen   string
	upstream string
	certFile string
	keyFile  string
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the TLS relay",
	Long: `Start the TLS relay with the specified configuration.

The relay listens on the configured address (default 0.0.0.0:3000) and
answers every connection with the result of one GET to the upstream URL.
The certificate and key may come from the config file or from flags.

A missing config file is not an error unless --config was given explicitly.

Examples:
  # Start with a certificate and the default upstream
  tlsrelay run --cert certs/cert.pem --key certs/key.pem

  # Listen on another port and relay a different upstream
  tlsrelay run --port 8443 --upstream https://example.com/ --cert c.pem --key k.pem

  # Start with a config file
  tlsrelay run --config /etc/tlsrelay/config.yaml

  # Validate config and credentials without listening
  tlsrelay run --dry-run`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runFlags.port, "port", "p", 0, "listen on 0.0.0.0:PORT")
	runCmd.Flags().StringVarP(&runFlags.listen, "listen", "l", "", "override listen address (host:port)")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream URL")
	runCmd.Flags().StringVar(&runFlags.certFile, "cert", "", "PEM certificate chain file")
	runCmd.Flags().StringVar(&runFlags.keyFile, "key", "", "PEM private key file")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and credentials without listening")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.dryRun {
		a.close()
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration and credentials valid")
		return nil
	}

	ln, err := net.Listen("tcp", cfg.Listener.ListenAddress)
	if err != nil {
		a.close()
		return cli.NewCommandError("run", fmt.Errorf("listen on %s: %w", cfg.Listener.ListenAddress, err))
	}

	logger.Info("starting tlsrelay",
		"version", Version,
		"address", ln.Addr().String(),
		"upstream", cfg.Upstream.URL,
		"admin_enabled", cfg.Admin.Enabled,
		"journal_enabled", cfg.Journal.Enabled,
	)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := a.serve(ctx, ln); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Info("tlsrelay stopped")
	return nil
}

// loadConfig reads the config file with TLSRELAY_* overrides. When
// allowMissing is set and --config was not given explicitly, a missing file
// falls back to defaults.
func loadConfig(cmd *cobra.Command, allowMissing bool) (*config.Config, error) {
	optional := allowMissing && !cmd.Flags().Changed("config")
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile, optional)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("port") && flags.Changed("listen") {
		return cli.NewConfigError("--port", "cannot be combined with --listen")
	}
	if flags.Changed("port") {
		if runFlags.port < 1 || runFlags.port > 65535 {
			return cli.NewConfigError("--port", fmt.Sprintf("must be between 1 and 65535, got %d", runFlags.port))
		}
		cfg.Listener.ListenAddress = config.ListenAddressForPort(runFlags.port)
	}
	if runFlags.listen != "" {
		cfg.Listener.ListenAddress = runFlags.listen
	}
	if runFlags.upstream != "" {
		cfg.Upstream.URL = runFlags.upstream
	}
	if runFlags.certFile != "" {
		cfg.Security.TLS.CertFile = runFlags.certFile
	}
	if runFlags.keyFile != "" {
		cfg.Security.TLS.KeyFile = runFlags.keyFile
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if cfg.Security.TLS.CertFile == "" {
		return cli.NewConfigError("security.tls.cert_file", "certificate file is required (--cert)")
	}
	if cfg.Security.TLS.KeyFile == "" {
		return cli.NewConfigError("security.tls.key_file", "private key file is required (--key)")
	}

	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}
	return nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return nil, err
	}
	return l.Slog(), nil
}
