// Package logging provides structured logging for tlsrelay.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Connection-scoped fields (connection_id, remote_addr, trace_id)
//     attached automatically when logging with a context
//   - Redaction of credentials in logged request head lines
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = logging.WithConnectionID(ctx, id)
//	logger.Slog().InfoContext(ctx, "connection closed", "status", 200)
//
// Components receive logger.Slog() and derive their own child loggers with
// With("component", ...).
package logging
