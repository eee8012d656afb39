package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/telemetry/health"
	"mercator-hq/tlsrelay/pkg/telemetry/metrics"
)

// DefaultShutdownTimeout bounds Shutdown when Start's context ends.
const DefaultShutdownTimeout = 5 * time.Second

// probeRateLimit caps health and readiness requests per second.
const probeRateLimit = 50

// Options configures the admin server.
type Options struct {
	// ListenAddress is used by Start. Defaults to config.DefaultAdminListenAddress.
	ListenAddress string

	// MetricsPath defaults to config.DefaultMetricsPath.
	MetricsPath string

	// Metrics is served on MetricsPath. The route is omitted when nil.
	Metrics *metrics.Collector

	// Checker backs /ready. A checker with no checks is used when nil.
	Checker *health.Checker

	Version   string
	Commit    string
	BuildTime string

	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// New creates an admin server. It does not listen until Start or Serve.
func New(opts Options) *Server {
	if opts.ListenAddress == "" {
		opts.ListenAddress = config.DefaultAdminListenAddress
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	if opts.Checker == nil {
		opts.Checker = health.New(0)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "admin"),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the admin route table wrapped in logging and recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.opts.Metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
	mux.Handle("/health", health.RateLimited(s.opts.Checker.LivenessHandler(), probeRateLimit))
	mux.Handle("/ready", health.RateLimited(s.opts.Checker.ReadinessHandler(), probeRateLimit))
	mux.Handle("/version", health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))

	var handler http.Handler = mux
	handler = logRequests(s.logger, handler)
	handler = recoverPanics(s.logger, handler)
	return handler
}

// Start listens on ListenAddress and serves until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.opts.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or Shutdown is called. It
// returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("admin server is already running")
	}
	s.running = true
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting admin server",
		"address", ln.Addr().String(),
		"metrics_path", s.opts.MetricsPath,
		"checks", s.opts.Checker.Names(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.setStopped()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.setStopped()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin shutdown: %w", err)
	}
	s.logger.Info("admin server stopped")
	return nil
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
