/*
Package security holds the transport security pieces of tlsrelay.

# TLS Configuration

Load the server credential and build a listener configuration:

	cred, err := tls.LoadCredentialMaterial("/etc/tlsrelay/cert.pem", "/etc/tlsrelay/key.pem")
	if err != nil {
		log.Fatal(err)
	}

	cfg := &tls.Config{MinVersion: "1.2"}
	tlsConfig, err := cfg.ServerTLSConfig(cred)
	if err != nil {
		log.Fatal(err)
	}

# Certificate Maintenance

ExpiryMonitor reports days remaining on the served certificate on a cron
schedule, and FileWatcher reports edits to the credential files. Neither
reloads the credential; a restart is required to pick up new material.
*/
package security
