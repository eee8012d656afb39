package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/tlsrelay/pkg/telemetry/metrics"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ServerOptions configures admission control for a Server.
type ServerOptions struct {
	// AcceptRate is the sustained number of connections accepted per
	// second. Zero disables rate limiting.
	AcceptRate float64

	// AcceptBurst is the rate limiter burst.
	AcceptBurst int

	// MaxConnections caps connections handled at once. Zero means no cap.
	MaxConnections int

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// ConnectionHandler serves one accepted connection. *Handler implements it.
type ConnectionHandler interface {
	Handle(ctx context.Context, raw net.Conn) Result
}

// Server accepts connections and runs each in its own goroutine.
type Server struct {
	handler ConnectionHandler
	logger  *slog.Logger
	metrics *metrics.Collector
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	// handlers run under baseCtx rather than the Serve context so that
	// in-flight connections drain during Shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu         sync.Mutex
	listener   net.Listener
	active     map[net.Conn]struct{}
	inShutdown bool
	wg         sync.WaitGroup

	ready        atomic.Bool
	shutdownOnce sync.Once
}

// NewServer creates a server that hands accepted connections to handler.
func NewServer(handler ConnectionHandler, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		handler: handler,
		logger:  logger.With("component", "relay-server"),
		metrics: opts.Metrics,
		active:  make(map[net.Conn]struct{}),
	}
	if opts.AcceptRate > 0 {
		burst := opts.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	if opts.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxConnections))
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	return s
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called, in which case it returns ErrServerClosed. Other accept failures
// that are not temporary are returned as is.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.inShutdown {
		s.mu.Unlock()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("relay: server already serving")
	}
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.ready.Store(true)
	defer s.ready.Store(false)

	s.logger.Info("relay listening", "address", ln.Addr().String())

	var backoff time.Duration
	for {
		if err := s.admit(ctx); err != nil {
			return s.closedErr(ctx, err)
		}

		raw, err := ln.Accept()
		if err != nil {
			s.release()
			if s.closing(ctx) {
				return ErrServerClosed
			}
			if isTemporary(err) {
				if backoff == 0 {
					backoff = minAcceptBackoff
				} else {
					backoff *= 2
				}
				if backoff > maxAcceptBackoff {
					backoff = maxAcceptBackoff
				}
				s.logger.Warn("accept error; retrying", "error", err, "backoff", backoff)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ErrServerClosed
				}
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		if !s.track(raw) {
			s.release()
			_ = raw.Close()
			return ErrServerClosed
		}

		go s.serveConn(raw)
	}
}

func (s *Server) serveConn(raw net.Conn) {
	defer s.wg.Done()
	defer s.untrack(raw)
	defer s.release()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("recovered panic after connection close", "panic", p)
		}
	}()

	s.handler.Handle(s.baseCtx, raw)
}

// admit blocks until the rate limiter and the connection cap allow another
// accept.
func (s *Server) admit(ctx context.Context) error {
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.RecordAdmissionWait("rate_limited")
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if s.sem != nil && !s.sem.TryAcquire(1) {
		s.metrics.RecordAdmissionWait("max_connections")
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown {
		return false
	}
	s.active[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.active, c)
	s.mu.Unlock()
}

func (s *Server) closing(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inShutdown
}

func (s *Server) closedErr(ctx context.Context, err error) error {
	if s.closing(ctx) {
		return ErrServerClosed
	}
	return err
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// ActiveConnections returns the number of connections being handled.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight ones to
// finish. If ctx expires first, remaining connections are closed and
// ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.inShutdown = true
		ln := s.listener
		s.mu.Unlock()

		s.ready.Store(false)
		if ln != nil {
			_ = ln.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			s.logger.Info("relay drained")
		case <-ctx.Done():
			s.logger.Warn("shutdown timeout; closing active connections",
				"active", s.ActiveConnections(),
			)
			s.cancelBase()
			s.closeActive()
			<-done
			err = ctx.Err()
		}
		s.cancelBase()
	})
	return err
}

func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.active {
		_ = c.Close()
	}
}

func isTemporary(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var te interface{ Temporary() bool }
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}
