package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"mercator-hq/tlsrelay/pkg/telemetry/logging"
	"mercator-hq/tlsrelay/pkg/telemetry/metrics"
	"mercator-hq/tlsrelay/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// State is a connection lifecycle state.
type State int

const (
	StateAccepted State = iota
	StateHandshaking
	StateReadingRequest
	StateDispatching
	StateWritingResponse
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateReadingRequest:
		return "reading_request"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing_response"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result classes reported to metrics, traces and the journal.
const (
	ClassSuccess             = "success"
	ClassUpstreamError       = "upstream_error"
	ClassUpstreamUnreachable = "upstream_unreachable"
	ClassReadError           = "read_error"
	ClassHandshakeError      = "handshake_error"
	ClassWriteError          = "write_error"
	ClassPanic               = "panic"
)

// StageDurations holds the time spent in each stage of a connection.
type StageDurations struct {
	Handshake time.Duration
	Read      time.Duration
	Dispatch  time.Duration
	Write     time.Duration
}

// Result describes one finished connection.
type Result struct {
	ConnectionID string
	RemoteAddr   string
	StartedAt    time.Time
	FinishedAt   time.Time

	// LastState is the last state entered before the connection closed.
	LastState State

	// Class is one of the Class* constants. It names the first failure; a
	// response write that fails after an earlier failure does not replace it.
	Class string

	// UpstreamStatus is the upstream status code, or zero when the upstream
	// was not reached.
	UpstreamStatus int

	// StatusCode is the status written to the client, or zero when nothing
	// was written.
	StatusCode   int
	BytesWritten int
	HeadLines    int

	// Err joins every error seen on the connection, first failure first.
	Err    error
	Stages StageDurations
}

// Recorder receives every finished connection Result. Implementations must
// not block the handler.
type Recorder interface {
	Record(ctx context.Context, res Result)
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// TLSConfig is the server TLS configuration shared by all connections.
	TLSConfig *tls.Config

	// Upstream performs the upstream fetch.
	Upstream Fetcher

	// UpstreamURL is reported on spans. Optional.
	UpstreamURL string

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxHeadBytes     int

	// LogRequestHead logs the redacted head lines at debug level.
	LogRequestHead bool

	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Recorder Recorder
}

// Handler runs the per-connection pipeline: handshake, read the request
// head, fetch upstream, write the response, close.
//
// A Handler is safe for concurrent use; it holds no per-connection state.
type Handler struct {
	opts   HandlerOptions
	logger *slog.Logger
}

// NewHandler creates a connection handler.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.TLSConfig == nil {
		return nil, errors.New("TLS config is required")
	}
	if opts.Upstream == nil {
		return nil, errors.New("upstream fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		opts:   opts,
		logger: logger.With("component", "relay"),
	}, nil
}

// Handle serves one accepted connection and always closes raw before
// returning. It never panics; a panic in the pipeline is recovered and
// reported as ClassPanic.
func (h *Handler) Handle(ctx context.Context, raw net.Conn) (res Result) {
	res = Result{
		ConnectionID: uuid.NewString(),
		RemoteAddr:   remoteAddr(raw),
		StartedAt:    time.Now(),
		LastState:    StateAccepted,
	}

	ctx = logging.WithConnectionID(ctx, res.ConnectionID)
	ctx = logging.WithRemoteAddr(ctx, res.RemoteAddr)
	ctx, span := h.opts.Tracer.Start(ctx, "relay.connection",
		tracing.ConnectionAttributes(res.ConnectionID, res.RemoteAddr))
	if id := tracing.TraceID(ctx); id != "" {
		ctx = logging.WithTraceID(ctx, id)
		ctx = logging.WithSpanID(ctx, tracing.SpanID(ctx))
	}

	h.opts.Metrics.ConnectionOpened()

	var conn net.Conn = raw
	defer func() {
		if p := recover(); p != nil {
			res.Class = ClassPanic
			res.Err = fmt.Errorf("panic in connection handler: %v", p)
			h.logger.ErrorContext(ctx, "recovered panic",
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
		_ = conn.Close()

		res.FinishedAt = time.Now()
		h.finish(ctx, span, &res)
		span.End()
	}()

	// Handshake.
	res.LastState = StateHandshaking
	tlsConn, err := h.handshake(ctx, raw, &res)
	if err != nil {
		res.Class = ClassHandshakeError
		res.Err = err
		return res
	}
	conn = tlsConn

	// Read the request head. A failure still produces the fixed 500.
	res.LastState = StateReadingRequest
	var outcome Outcome
	head, err := h.readHead(ctx, tlsConn, &res)
	if err != nil {
		res.Class = ClassReadError
		res.Err = err
		outcome = Outcome{Kind: OutcomeTransportFailure, Err: err}
	} else {
		res.HeadLines = len(head.HeadLines)
		res.LastState = StateDispatching
		outcome = h.dispatch(ctx, &res)
	}

	// Write the response.
	res.LastState = StateWritingResponse
	resp := ResponseFor(outcome)
	n, err := h.write(ctx, tlsConn, resp, &res)
	res.BytesWritten = n
	if err != nil {
		// An earlier failure stays the reported class.
		if res.Class == ClassSuccess {
			res.Class = ClassWriteError
		}
		res.Err = errors.Join(res.Err, err)
		return res
	}
	res.StatusCode = resp.StatusCode
	return res
}

func (h *Handler) handshake(ctx context.Context, raw net.Conn, res *Result) (*tls.Conn, error) {
	ctx, span := h.opts.Tracer.Start(ctx, "relay.handshake")
	defer span.End()

	if h.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.HandshakeTimeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := Establish(ctx, raw, h.opts.TLSConfig)
	res.Stages.Handshake = time.Since(start)
	h.opts.Metrics.RecordStage("handshake", res.Stages.Handshake)

	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	state := conn.ConnectionState()
	span.SetAttributes(
		tracing.AttrTLSVersion.String(tls.VersionName(state.Version)),
		tracing.AttrTLSCipher.String(tls.CipherSuiteName(state.CipherSuite)),
	)
	return conn, nil
}

func (h *Handler) readHead(ctx context.Context, conn net.Conn, res *Result) (*InboundRequest, error) {
	_, span := h.opts.Tracer.Start(ctx, "relay.read_request")
	defer span.End()

	if h.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	}

	start := time.Now()
	head, err := ReadRequestHead(conn, h.opts.MaxHeadBytes)
	res.Stages.Read = time.Since(start)
	h.opts.Metrics.RecordStage("read", res.Stages.Read)

	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	span.SetAttributes(tracing.AttrHeadLines.Int(len(head.HeadLines)))
	if h.opts.LogRequestHead {
		h.logger.DebugContext(ctx, "request head",
			"lines", logging.RedactHeadLines(head.HeadLines),
		)
	}
	return head, nil
}

func (h *Handler) dispatch(ctx context.Context, res *Result) Outcome {
	ctx, span := h.opts.Tracer.Start(ctx, "relay.dispatch")
	defer span.End()

	start := time.Now()
	outcome := h.opts.Upstream.Fetch(ctx)
	res.Stages.Dispatch = time.Since(start)
	h.opts.Metrics.RecordStage("dispatch", res.Stages.Dispatch)
	h.opts.Metrics.RecordUpstream(outcome.Class())

	switch {
	case outcome.Kind == OutcomeTransportFailure:
		res.Class = ClassUpstreamUnreachable
		res.Err = outcome.Err
		tracing.SetUpstreamAttributes(span, h.opts.UpstreamURL, 0, 0)
		tracing.SetError(span, outcome.Err)
	case !outcome.StatusOK:
		res.Class = ClassUpstreamError
		res.UpstreamStatus = outcome.StatusCode
		res.Err = &UpstreamStatusError{StatusCode: outcome.StatusCode}
		tracing.SetUpstreamAttributes(span, h.opts.UpstreamURL, outcome.StatusCode, len(outcome.Body))
		tracing.SetError(span, res.Err)
	default:
		res.Class = ClassSuccess
		res.UpstreamStatus = outcome.StatusCode
		tracing.SetUpstreamAttributes(span, h.opts.UpstreamURL, outcome.StatusCode, len(outcome.Body))
	}
	return outcome
}

func (h *Handler) write(ctx context.Context, conn net.Conn, resp OutboundResponse, res *Result) (int, error) {
	_, span := h.opts.Tracer.Start(ctx, "relay.write_response")
	defer span.End()

	if h.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	}

	start := time.Now()
	n, err := WriteResponse(conn, resp)
	res.Stages.Write = time.Since(start)
	h.opts.Metrics.RecordStage("write", res.Stages.Write)

	if err != nil {
		tracing.SetError(span, err)
		return n, err
	}
	h.opts.Metrics.RecordResponseBytes(n)
	return n, nil
}

// finish reports a closed connection to metrics, the span, the log and the
// recorder.
func (h *Handler) finish(ctx context.Context, span trace.Span, res *Result) {
	h.opts.Metrics.ConnectionClosed(res.Class)
	tracing.SetResultAttributes(span, res.LastState.String(), res.Class, res.StatusCode, res.BytesWritten)
	if res.Err != nil {
		tracing.SetError(span, res.Err)
	}

	attrs := []any{
		"state", res.LastState.String(),
		"class", res.Class,
		"status", res.StatusCode,
		"bytes_written", res.BytesWritten,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	}
	if res.UpstreamStatus != 0 {
		attrs = append(attrs, "upstream_status", res.UpstreamStatus)
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
	}

	switch res.Class {
	case ClassSuccess:
		h.logger.InfoContext(ctx, "connection relayed", attrs...)
	case ClassHandshakeError:
		h.logger.InfoContext(ctx, "tls handshake failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "connection relay failed", attrs...)
	}

	if h.opts.Recorder != nil {
		h.opts.Recorder.Record(ctx, *res)
	}
}
