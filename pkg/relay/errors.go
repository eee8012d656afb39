package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteHead is returned when the stream ends before the blank
	// line that terminates the request head.
	ErrIncompleteHead = errors.New("stream ended before end of request head")

	// ErrHeadTooLarge is returned when the request head exceeds the
	// configured size limit.
	ErrHeadTooLarge = errors.New("request head too large")

	// ErrBodyTooLarge is returned when the upstream body exceeds the
	// configured size limit.
	ErrBodyTooLarge = errors.New("upstream body too large")

	// ErrServerClosed is returned by Serve after Shutdown has been called.
	ErrServerClosed = errors.New("relay: server closed")
)

// HandshakeError represents a failed TLS handshake. Nothing is ever written
// to the client after one.
type HandshakeError struct {
	RemoteAddr string
	Cause      error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s failed: %v", e.RemoteAddr, e.Cause)
}

// Unwrap returns the underlying error.
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}

// ReadError represents a failure to read a complete request head.
type ReadError struct {
	// Lines is the number of complete head lines read before the failure.
	Lines int
	Cause error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("reading request head (after %d lines): %v", e.Lines, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Cause
}

// TransportError represents an upstream exchange that produced no usable
// response: connect, TLS, timeout, or body read failures.
type TransportError struct {
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// UpstreamStatusError records a completed upstream exchange with a non-2xx
// status. The client never sees this status; it only reaches logs, metrics
// and the journal.
type UpstreamStatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned non-success status %d", e.StatusCode)
}

// WriteError represents a failed or short response write.
type WriteError struct {
	Written  int
	Expected int
	Cause    error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("writing response (%d of %d bytes): %v", e.Written, e.Expected, e.Cause)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Cause
}
