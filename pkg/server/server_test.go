package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/telemetry/health"
	"mercator-hq/tlsrelay/pkg/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(ready *bool) *Server {
	collector := metrics.NewCollector(&config.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())
	collector.ConnectionOpened()

	checker := health.New(time.Second)
	checker.Register("listener", func(context.Context) error {
		if !*ready {
			return errors.New("relay not accepting")
		}
		return nil
	})

	return New(Options{
		Metrics: collector,
		Checker: checker,
		Version: "0.1.0",
		Logger:  discardLogger(),
	})
}

func TestServer_Routes(t *testing.T) {
	ready := true
	h := newTestServer(&ready).Handler()

	tests := []struct {
		name         string
		path         string
		setup        func()
		wantCode     int
		wantContains string
	}{
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK, wantContains: "test_connections_active 1"},
		{name: "health", path: "/health", wantCode: http.StatusOK, wantContains: `"status":"ok"`},
		{name: "ready", path: "/ready", wantCode: http.StatusOK, wantContains: `"listener"`},
		{name: "version", path: "/version", wantCode: http.StatusOK, wantContains: `"version":"0.1.0"`},
		{name: "unknown", path: "/nope", wantCode: http.StatusNotFound},
		{
			name:         "not ready",
			path:         "/ready",
			setup:        func() { ready = false },
			wantCode:     http.StatusServiceUnavailable,
			wantContains: "relay not accepting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
			}
			if tt.wantContains != "" && !strings.Contains(rec.Body.String(), tt.wantContains) {
				t.Errorf("GET %s body missing %q:\n%s", tt.path, tt.wantContains, rec.Body.String())
			}
		})
	}
}

func TestServer_NoMetrics(t *testing.T) {
	s := New(Options{Logger: discardLogger()})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without collector = %d, want 404", rec.Code)
	}
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(discardLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", rec.Code)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ready := true
	s := newTestServer(&ready)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if s.Addr() == nil {
		t.Error("Addr() = nil while serving")
	}

	if err := s.Serve(ctx, ln); err == nil {
		t.Error("second Serve() should fail while running")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_StartBadAddress(t *testing.T) {
	s := New(Options{ListenAddress: "127.0.0.1:-1", Logger: discardLogger()})
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() on invalid address should fail")
	}
}
