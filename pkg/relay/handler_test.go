package relay

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/tlsrelay/pkg/config"
	securitytls "mercator-hq/tlsrelay/pkg/security/tls"
	"mercator-hq/tlsrelay/pkg/telemetry/metrics"
	"mercator-hq/tlsrelay/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	testRequest     = "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	testFailureWire = "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 23\r\n\r\nUpstream Request Failed"
)

var (
	tlsOnce         sync.Once
	testServerTLS   *tls.Config
	testClientTLS   *tls.Config
	testTLSSetupErr error
)

// testTLSConfigs returns a server config with a self-signed credential and
// a client config that trusts it. Key generation is done once per package.
func testTLSConfigs(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	tlsOnce.Do(func() {
		certPEM, keyPEM, err := securitytls.GenerateSelfSigned(securitytls.SelfSignedOptions{
			Hosts:        []string{"localhost", "127.0.0.1"},
			Organization: "Test",
			Validity:     time.Hour,
			KeySize:      2048,
		})
		if err != nil {
			testTLSSetupErr = err
			return
		}
		cred, err := securitytls.ParseCredentialPEM(certPEM, keyPEM)
		if err != nil {
			testTLSSetupErr = err
			return
		}
		testServerTLS, testTLSSetupErr = (&securitytls.Config{}).ServerTLSConfig(cred)

		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(certPEM)
		testClientTLS = &tls.Config{RootCAs: pool, ServerName: "localhost"}
	})
	if testTLSSetupErr != nil {
		t.Fatalf("failed to set up test TLS: %v", testTLSSetupErr)
	}
	return testServerTLS.Clone(), testClientTLS.Clone()
}

type fetchFunc func(ctx context.Context) Outcome

func (f fetchFunc) Fetch(ctx context.Context) Outcome {
	return f(ctx)
}

func staticFetcher(o Outcome) Fetcher {
	return fetchFunc(func(context.Context) Outcome { return o })
}

type recordingRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recordingRecorder) Record(_ context.Context, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingRecorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, upstream Fetcher, mutate func(*HandlerOptions)) *Handler {
	t.Helper()

	serverTLS, _ := testTLSConfigs(t)
	opts := HandlerOptions{
		TLSConfig: serverTLS,
		Upstream:  upstream,
		Logger:    discardLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}

	h, err := NewHandler(opts)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h
}

// serveOne accepts a single connection on a loopback listener and hands it
// to h. The Result is delivered on the returned channel.
func serveOne(t *testing.T, h *Handler) (string, <-chan Result) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	results := make(chan Result, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			close(results)
			return
		}
		results <- h.Handle(context.Background(), raw)
	}()
	return ln.Addr().String(), results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()

	select {
	case res, ok := <-results:
		if !ok {
			t.Fatal("connection was never handled")
		}
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
	return Result{}
}

// exchange dials addr over TLS, sends request and returns everything the
// relay writes before closing.
func exchange(t *testing.T, addr, request string) []byte {
	t.Helper()

	got, err := tryExchange(addr, request)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

// tryExchange is exchange for use outside the test goroutine.
func tryExchange(addr, request string) ([]byte, error) {
	conn, err := tls.Dial("tcp", addr, testClientTLS.Clone())
	if err != nil {
		return nil, fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write([]byte(request)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	got, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return got, nil
}

func TestNewHandler_Validation(t *testing.T) {
	serverTLS, _ := testTLSConfigs(t)
	upstream := staticFetcher(Outcome{})

	if _, err := NewHandler(HandlerOptions{Upstream: upstream}); err == nil {
		t.Error("expected error without TLS config")
	}
	if _, err := NewHandler(HandlerOptions{TLSConfig: serverTLS}); err == nil {
		t.Error("expected error without upstream")
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		wantWire      string
		wantClass     string
		wantUpstream  int
		wantErrorType any
	}{
		{
			name: "upstream 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("hello"))
			},
			wantWire:     "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello",
			wantClass:    ClassSuccess,
			wantUpstream: 200,
		},
		{
			name: "upstream 503",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
			wantWire:      testFailureWire,
			wantClass:     ClassUpstreamError,
			wantUpstream:  503,
			wantErrorType: new(*UpstreamStatusError),
		},
		{
			name: "upstream 302 to missing page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/" {
					http.Redirect(w, r, "/gone", http.StatusFound)
					return
				}
				http.NotFound(w, r)
			},
			wantWire:      testFailureWire,
			wantClass:     ClassUpstreamError,
			wantUpstream:  404,
			wantErrorType: new(*UpstreamStatusError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewTLSServer(tt.handler)
			defer upstream.Close()

			d, err := NewDispatcher(upstream.URL+"/", upstream.Client())
			if err != nil {
				t.Fatal(err)
			}
			addr, results := serveOne(t, newTestHandler(t, d, nil))

			got := exchange(t, addr, testRequest)
			if string(got) != tt.wantWire {
				t.Errorf("response = %q, want %q", got, tt.wantWire)
			}

			res := waitResult(t, results)
			if res.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q (err %v)", res.Class, tt.wantClass, res.Err)
			}
			if res.UpstreamStatus != tt.wantUpstream {
				t.Errorf("UpstreamStatus = %d, want %d", res.UpstreamStatus, tt.wantUpstream)
			}
			if res.BytesWritten != len(tt.wantWire) {
				t.Errorf("BytesWritten = %d, want %d", res.BytesWritten, len(tt.wantWire))
			}
			if res.LastState != StateWritingResponse {
				t.Errorf("LastState = %v, want %v", res.LastState, StateWritingResponse)
			}
			if res.HeadLines != 2 {
				t.Errorf("HeadLines = %d, want 2", res.HeadLines)
			}
			if _, err := uuid.Parse(res.ConnectionID); err != nil {
				t.Errorf("ConnectionID %q is not a UUID: %v", res.ConnectionID, err)
			}
			if tt.wantErrorType != nil && !errors.As(res.Err, tt.wantErrorType) {
				t.Errorf("Err = %v (%T), want %T", res.Err, res.Err, tt.wantErrorType)
			}
		})
	}
}

func TestHandler_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewTLSServer(http.NotFoundHandler())
	target, client := upstream.URL+"/", upstream.Client()
	upstream.Close()

	d, err := NewDispatcher(target, client)
	if err != nil {
		t.Fatal(err)
	}
	addr, results := serveOne(t, newTestHandler(t, d, nil))

	got := exchange(t, addr, testRequest)
	if string(got) != testFailureWire {
		t.Errorf("response = %q, want %q", got, testFailureWire)
	}

	res := waitResult(t, results)
	if res.Class != ClassUpstreamUnreachable {
		t.Errorf("Class = %q, want %q", res.Class, ClassUpstreamUnreachable)
	}
	var transportErr *TransportError
	if !errors.As(res.Err, &transportErr) {
		t.Errorf("Err = %v, want *TransportError", res.Err)
	}
	if res.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", res.StatusCode)
	}
}

func TestHandler_BodySizes(t *testing.T) {
	for _, size := range []int{0, 1, 8 << 10, 256 << 10} {
		body := bytes.Repeat([]byte("z"), size)
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			h := newTestHandler(t, staticFetcher(Outcome{
				Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200, Body: body,
			}), nil)
			addr, results := serveOne(t, h)

			got := exchange(t, addr, testRequest)
			want := SuccessResponse(body).Bytes()
			if !bytes.Equal(got, want) {
				t.Errorf("response for %d-byte body differs (got %d bytes, want %d)", size, len(got), len(want))
			}
			if res := waitResult(t, results); res.Class != ClassSuccess {
				t.Errorf("Class = %q", res.Class)
			}
		})
	}
}

func TestHandler_UnterminatedHead(t *testing.T) {
	var fetched bool
	h := newTestHandler(t, fetchFunc(func(context.Context) Outcome {
		fetched = true
		return Outcome{Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200}
	}), nil)
	addr, results := serveOne(t, h)

	_, clientTLS := testTLSConfigs(t)
	conn, err := tls.Dial("tcp", addr, clientTLS)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n")); err != nil {
		t.Fatal(err)
	}
	if err := conn.CloseWrite(); err != nil {
		t.Fatal(err)
	}

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if string(got) != testFailureWire {
		t.Errorf("response = %q, want %q", got, testFailureWire)
	}

	res := waitResult(t, results)
	if res.Class != ClassReadError {
		t.Errorf("Class = %q, want %q", res.Class, ClassReadError)
	}
	if !errors.Is(res.Err, ErrIncompleteHead) {
		t.Errorf("Err = %v, want ErrIncompleteHead", res.Err)
	}
	if fetched {
		t.Error("upstream was contacted after a read failure")
	}
}

func TestHandler_HeadTooLarge(t *testing.T) {
	h := newTestHandler(t, staticFetcher(Outcome{Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200}),
		func(o *HandlerOptions) { o.MaxHeadBytes = 32 })
	addr, results := serveOne(t, h)

	got := exchange(t, addr, "GET / HTTP/1.1\r\nX-Padding: "+strings.Repeat("p", 64)+"\r\n\r\n")
	if string(got) != testFailureWire {
		t.Errorf("response = %q, want %q", got, testFailureWire)
	}
	if res := waitResult(t, results); !errors.Is(res.Err, ErrHeadTooLarge) {
		t.Errorf("Err = %v, want ErrHeadTooLarge", res.Err)
	}
}

func TestHandler_ReadTimeout(t *testing.T) {
	h := newTestHandler(t, staticFetcher(Outcome{Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200}),
		func(o *HandlerOptions) { o.ReadTimeout = 100 * time.Millisecond })
	addr, results := serveOne(t, h)

	_, clientTLS := testTLSConfigs(t)
	conn, err := tls.Dial("tcp", addr, clientTLS)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	// Send nothing; the read deadline must end the wait.
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if string(got) != testFailureWire {
		t.Errorf("response = %q, want %q", got, testFailureWire)
	}
	if res := waitResult(t, results); res.Class != ClassReadError {
		t.Errorf("Class = %q, want %q", res.Class, ClassReadError)
	}
}

func TestHandler_PlaintextRecord(t *testing.T) {
	var fetched bool
	h := newTestHandler(t, fetchFunc(func(context.Context) Outcome {
		fetched = true
		return Outcome{}
	}), nil)
	addr, results := serveOne(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	// Plaintext HTTP instead of a TLS record. crypto/tls rejects the record
	// header without sending an alert.
	_, _ = conn.Write([]byte(testRequest))
	got, _ := io.ReadAll(conn)
	if len(got) != 0 {
		t.Errorf("relay wrote %d bytes after a failed handshake: %q", len(got), got)
	}

	res := waitResult(t, results)
	if res.Class != ClassHandshakeError {
		t.Errorf("Class = %q, want %q", res.Class, ClassHandshakeError)
	}
	if res.LastState != StateHandshaking {
		t.Errorf("LastState = %v, want %v", res.LastState, StateHandshaking)
	}
	if res.BytesWritten != 0 || res.StatusCode != 0 {
		t.Errorf("BytesWritten = %d StatusCode = %d, want 0", res.BytesWritten, res.StatusCode)
	}
	var hsErr *HandshakeError
	if !errors.As(res.Err, &hsErr) {
		t.Errorf("Err = %v, want *HandshakeError", res.Err)
	}
	if fetched {
		t.Error("upstream was contacted after a failed handshake")
	}
}

func TestHandler_MalformedClientHello(t *testing.T) {
	var fetched bool
	h := newTestHandler(t, fetchFunc(func(context.Context) Outcome {
		fetched = true
		return Outcome{}
	}), nil)
	addr, results := serveOne(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	// A handshake record carrying a ClientHello whose body is garbage.
	hello := []byte{
		0x16, 0x03, 0x01, 0x00, 0x08, // record header: handshake, 8 bytes
		0x01, 0x00, 0x00, 0x04, // ClientHello, 4 bytes
		0xde, 0xad, 0xbe, 0xef,
	}
	if _, err := conn.Write(hello); err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(conn)

	// The TLS stack may answer with one alert record; nothing else is allowed.
	if len(got) > 0 {
		if len(got) < 5 || got[0] != 0x15 {
			t.Fatalf("relay wrote %q, want at most one alert record", got)
		}
		if recordLen := 5 + (int(got[3])<<8 | int(got[4])); recordLen != len(got) {
			t.Errorf("relay wrote %d bytes, want a single %d byte alert record", len(got), recordLen)
		}
	}
	if bytes.Contains(got, []byte("HTTP/")) {
		t.Errorf("relay wrote an HTTP response after a failed handshake: %q", got)
	}

	res := waitResult(t, results)
	if res.Class != ClassHandshakeError {
		t.Errorf("Class = %q, want %q", res.Class, ClassHandshakeError)
	}
	if res.BytesWritten != 0 || res.StatusCode != 0 {
		t.Errorf("BytesWritten = %d StatusCode = %d, want 0", res.BytesWritten, res.StatusCode)
	}
	if fetched {
		t.Error("upstream was contacted after a failed handshake")
	}
}

var errPeerGone = errors.New("peer gone")

// halfDeadConn fails every write once a read on the underlying connection
// has failed.
type halfDeadConn struct {
	net.Conn
	readFailed sync.Once
	dead       chan struct{}
}

func (c *halfDeadConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.readFailed.Do(func() { close(c.dead) })
	}
	return n, err
}

func (c *halfDeadConn) Write(p []byte) (int, error) {
	select {
	case <-c.dead:
		return 0, errPeerGone
	default:
		return c.Conn.Write(p)
	}
}

func TestHandler_ReadErrorSurvivesWriteError(t *testing.T) {
	var fetched bool
	h := newTestHandler(t, fetchFunc(func(context.Context) Outcome {
		fetched = true
		return Outcome{Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200}
	}), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	results := make(chan Result, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			close(results)
			return
		}
		results <- h.Handle(context.Background(), &halfDeadConn{Conn: raw, dead: make(chan struct{})})
	}()

	_, clientTLS := testTLSConfigs(t)
	tcp, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer tcp.Close()
	_ = tcp.SetDeadline(time.Now().Add(10 * time.Second))

	conn := tls.Client(tcp, clientTLS)
	if err := conn.Handshake(); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n")); err != nil {
		t.Fatal(err)
	}
	// Close the TCP write side without a close_notify so the relay's read
	// of the underlying connection fails mid-head.
	if err := tcp.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatal(err)
	}
	_, _ = io.ReadAll(tcp)

	res := waitResult(t, results)
	if res.Class != ClassReadError {
		t.Errorf("Class = %q, want %q", res.Class, ClassReadError)
	}
	var readErr *ReadError
	if !errors.As(res.Err, &readErr) {
		t.Errorf("Err = %v, want it to keep the *ReadError", res.Err)
	}
	var writeErr *WriteError
	if !errors.As(res.Err, &writeErr) || !errors.Is(res.Err, errPeerGone) {
		t.Errorf("Err = %v, want it to also carry the write failure", res.Err)
	}
	if fetched {
		t.Error("upstream was contacted after a read failure")
	}
}

func TestHandler_HandshakeTimeout(t *testing.T) {
	h := newTestHandler(t, staticFetcher(Outcome{}),
		func(o *HandlerOptions) { o.HandshakeTimeout = 100 * time.Millisecond })
	addr, results := serveOne(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	res := waitResult(t, results)
	if res.Class != ClassHandshakeError {
		t.Errorf("Class = %q, want %q", res.Class, ClassHandshakeError)
	}
}

func TestHandler_RecoversPanic(t *testing.T) {
	recorder := &recordingRecorder{}
	h := newTestHandler(t, fetchFunc(func(context.Context) Outcome {
		panic("upstream exploded")
	}), func(o *HandlerOptions) { o.Recorder = recorder })
	addr, results := serveOne(t, h)

	got := exchange(t, addr, testRequest)
	if len(got) != 0 {
		t.Errorf("response = %q, want nothing", got)
	}

	res := waitResult(t, results)
	if res.Class != ClassPanic {
		t.Errorf("Class = %q, want %q", res.Class, ClassPanic)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "upstream exploded") {
		t.Errorf("Err = %v", res.Err)
	}
	if recs := recorder.all(); len(recs) != 1 || recs[0].Class != ClassPanic {
		t.Errorf("recorded %+v", recs)
	}
}

func TestHandler_Telemetry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Namespace: "test"}, registry)

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{
		Enabled: true, Sampler: tracing.SamplerAlways, ServiceName: "test",
	}, "test", exporter)
	if err != nil {
		t.Fatal(err)
	}

	recorder := &recordingRecorder{}
	h := newTestHandler(t, staticFetcher(Outcome{
		Kind: OutcomeSuccess, StatusOK: true, StatusCode: 200, Body: []byte("hello"),
	}), func(o *HandlerOptions) {
		o.Metrics = collector
		o.Tracer = tracer
		o.Recorder = recorder
		o.LogRequestHead = true
	})
	addr, results := serveOne(t, h)

	exchange(t, addr, testRequest)
	res := waitResult(t, results)

	expected := `
# HELP test_connections_total Total number of connections handled, by final outcome
# TYPE test_connections_total counter
test_connections_total{outcome="success"} 1
# HELP test_connections_active Number of connections currently being handled
# TYPE test_connections_active gauge
test_connections_active 0
# HELP test_upstream_responses_total Total upstream fetches by result class
# TYPE test_upstream_responses_total counter
test_upstream_responses_total{class="2xx"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"test_connections_total", "test_connections_active", "test_upstream_responses_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())
	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	for _, want := range []string{"relay.connection", "relay.handshake", "relay.read_request", "relay.dispatch", "relay.write_response"} {
		if !names[want] {
			t.Errorf("missing span %q (got %v)", want, names)
		}
	}

	recs := recorder.all()
	if len(recs) != 1 {
		t.Fatalf("recorded %d results, want 1", len(recs))
	}
	if recs[0].ConnectionID != res.ConnectionID {
		t.Errorf("recorded ConnectionID %q, want %q", recs[0].ConnectionID, res.ConnectionID)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAccepted, "accepted"},
		{StateHandshaking, "handshaking"},
		{StateReadingRequest, "reading_request"},
		{StateDispatching, "dispatching"},
		{StateWritingResponse, "writing_response"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
