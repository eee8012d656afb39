// tlsrelay terminates TLS for inbound clients and answers every connection
// with the result of one fixed upstream HTTPS GET.
//
// Each accepted connection is handled independently:
//   - TLS handshake with the configured certificate
//   - Read the request head up to the first blank line
//   - GET the configured upstream URL
//   - Write "HTTP/1.1 200 OK" with the upstream body, or a fixed 500 on failure
//
// Usage:
//
//	# Generate a development certificate
//	tlsrelay certs generate --host localhost
//
//	# Start the relay on port 3000
//	tlsrelay run --cert certs/cert.pem --key certs/key.pem
//
//	# Start with a configuration file
//	tlsrelay run --config /etc/tlsrelay/config.yaml
//
//	# Show version information
//	tlsrelay version
package main

import "os"

func main() {
	os.Exit(Execute())
}
