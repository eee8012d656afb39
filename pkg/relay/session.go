package relay

import (
	"context"
	"crypto/tls"
	"net"
)

// Establish performs the server side of a TLS handshake on raw using cfg.
//
// On failure it returns a *HandshakeError and leaves raw open; the caller
// closes it without writing anything. The TLS stack may still have emitted
// an alert record, which is protocol rather than application data.
func Establish(ctx context.Context, raw net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	conn := tls.Server(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, &HandshakeError{RemoteAddr: remoteAddr(raw), Cause: err}
	}
	return conn, nil
}

func remoteAddr(c net.Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
