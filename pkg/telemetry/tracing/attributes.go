package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on relay spans.
const (
	AttrConnectionID   = attribute.Key("tlsrelay.connection.id")
	AttrRemoteAddr     = attribute.Key("net.peer.addr")
	AttrHeadLines      = attribute.Key("tlsrelay.request.head_lines")
	AttrUpstreamURL    = attribute.Key("tlsrelay.upstream.url")
	AttrUpstreamStatus = attribute.Key("http.response.status_code")
	AttrUpstreamBytes  = attribute.Key("tlsrelay.upstream.body_bytes")
	AttrResponseStatus = attribute.Key("tlsrelay.response.status_code")
	AttrBytesWritten   = attribute.Key("tlsrelay.response.bytes_written")
	AttrFinalState     = attribute.Key("tlsrelay.connection.state")
	AttrOutcome        = attribute.Key("tlsrelay.connection.outcome")
	AttrTLSVersion     = attribute.Key("tls.protocol.version")
	AttrTLSCipher      = attribute.Key("tls.cipher")
)

// ConnectionAttributes returns the attributes set when a connection span starts.
func ConnectionAttributes(connectionID, remoteAddr string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrConnectionID.String(connectionID),
		AttrRemoteAddr.String(remoteAddr),
	)
}

// SetUpstreamAttributes records the upstream result on a dispatch span.
func SetUpstreamAttributes(span trace.Span, url string, status, bodyBytes int) {
	attrs := []attribute.KeyValue{AttrUpstreamURL.String(url)}
	if status > 0 {
		attrs = append(attrs,
			AttrUpstreamStatus.Int(status),
			AttrUpstreamBytes.Int(bodyBytes),
		)
	}
	span.SetAttributes(attrs...)
}

// SetResultAttributes records the final connection result.
func SetResultAttributes(span trace.Span, state, outcome string, status, bytesWritten int) {
	attrs := []attribute.KeyValue{
		AttrFinalState.String(state),
		AttrOutcome.String(outcome),
		AttrBytesWritten.Int(bytesWritten),
	}
	if status > 0 {
		attrs = append(attrs, AttrResponseStatus.Int(status))
	}
	span.SetAttributes(attrs...)
}
