/*
Package tls provides the relay's server credentials and TLS configuration.

# Credentials

The certificate chain and private key are loaded once at startup and shared
read-only by every connection:

	cred, err := tls.LoadCredentialMaterial("certs/cert.pem", "certs/key.pem")
	if err != nil {
		log.Fatal(err)
	}

	cfg := &tls.Config{MinVersion: "1.2"}
	serverConfig, err := cfg.ServerTLSConfig(cred)

Client certificates are never requested.

# Expiry Monitoring

ExpiryMonitor checks the served certificate on a cron schedule and logs a
warning when it is about to expire:

	monitor := tls.NewExpiryMonitor(cred, "@every 24h", 30, collector, logger)
	if err := monitor.Start(); err != nil {
		log.Fatal(err)
	}
	defer monitor.Stop()

# File Watching

FileWatcher logs when the certificate or key changes on disk. Credentials
are not reloaded; a restart is required to serve a renewed certificate.
*/
package tls
