package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/journal"
	"mercator-hq/tlsrelay/pkg/journal/recorder"
	"mercator-hq/tlsrelay/pkg/journal/retention"
	"mercator-hq/tlsrelay/pkg/journal/storage"
	"mercator-hq/tlsrelay/pkg/relay"
	securityTLS "mercator-hq/tlsrelay/pkg/security/tls"
	"mercator-hq/tlsrelay/pkg/server"
	"mercator-hq/tlsrelay/pkg/telemetry/health"
	"mercator-hq/tlsrelay/pkg/telemetry/metrics"
	"mercator-hq/tlsrelay/pkg/telemetry/tracing"

	"golang.org/x/sync/errgroup"
)

// app holds every long-running component started by "run".
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	collector *metrics.Collector
	tracer    *tracing.Tracer
	relay     *relay.Server
	admin     *server.Server
	checker   *health.Checker

	store     journal.Storage
	recorder  *recorder.Recorder
	scheduler *retention.Scheduler

	monitor *securityTLS.ExpiryMonitor
	watcher *securityTLS.FileWatcher
}

// newApp loads credentials and builds all components from cfg. Nothing is
// started. On error every resource acquired so far is released.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, checker: health.New(0)}
	if err := a.build(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build() error {
	cfg, logger := a.cfg, a.logger

	cred, err := securityTLS.LoadCredentialMaterial(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	leaf, err := cred.Leaf()
	if err != nil {
		return err
	}
	if err := securityTLS.ValidateX509Certificate(leaf); err != nil {
		logger.Warn("serving certificate is not currently valid", "error", err)
	}

	tlsSettings := &securityTLS.Config{
		MinVersion:   cfg.Security.TLS.MinVersion,
		CipherSuites: cfg.Security.TLS.CipherSuites,
	}
	serverTLS, err := tlsSettings.ServerTLSConfig(cred)
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}

	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	client, err := relay.NewHTTPClient(cfg.Upstream)
	if err != nil {
		return fmt.Errorf("failed to build upstream client: %w", err)
	}
	var dispatchOpts []relay.DispatcherOption
	if cfg.Upstream.MaxBodyBytes > 0 {
		dispatchOpts = append(dispatchOpts, relay.WithMaxBodyBytes(cfg.Upstream.MaxBodyBytes))
	}
	if cfg.Upstream.AllowInsecureScheme {
		dispatchOpts = append(dispatchOpts, relay.WithInsecureScheme())
	}
	dispatcher, err := relay.NewDispatcher(cfg.Upstream.URL, client, dispatchOpts...)
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		a.store, err = storage.New(&cfg.Journal, logger)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		a.recorder = recorder.New(a.store, recorder.Config{
			AsyncBuffer:  cfg.Journal.AsyncBuffer,
			WriteTimeout: cfg.Journal.WriteTimeout,
		}, logger)
		a.scheduler = retention.NewScheduler(
			retention.NewPruner(a.store, cfg.Journal.RetentionDays, logger),
			cfg.Journal.PruneSchedule,
			logger,
		)
	}

	handlerOpts := relay.HandlerOptions{
		TLSConfig:        serverTLS,
		Upstream:         dispatcher,
		UpstreamURL:      dispatcher.Target(),
		HandshakeTimeout: cfg.Listener.HandshakeTimeout,
		ReadTimeout:      cfg.Listener.ReadTimeout,
		WriteTimeout:     cfg.Listener.WriteTimeout,
		MaxHeadBytes:     cfg.Listener.HeadLimit(),
		LogRequestHead:   cfg.Telemetry.Logging.LogRequestHead,
		Logger:           logger,
		Metrics:          a.collector,
		Tracer:           a.tracer,
	}
	if a.recorder != nil {
		handlerOpts.Recorder = a.recorder
	}
	handler, err := relay.NewHandler(handlerOpts)
	if err != nil {
		return err
	}

	a.relay = relay.NewServer(handler, relay.ServerOptions{
		AcceptRate:     cfg.Listener.AcceptRate,
		AcceptBurst:    cfg.Listener.AcceptBurst,
		MaxConnections: cfg.Listener.MaxConnections,
		Logger:         logger,
		Metrics:        a.collector,
	})

	if cfg.Security.TLS.ExpiryCheckSchedule != config.ExpiryCheckDisabled {
		a.monitor = securityTLS.NewExpiryMonitor(cred, cfg.Security.TLS.ExpiryCheckSchedule,
			cfg.Security.TLS.ExpiryWarningDays, a.collector, logger)
	}
	if cfg.Security.TLS.WatchFiles {
		a.watcher, err = securityTLS.NewFileWatcher(
			[]string{cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile}, a.collector, logger)
		if err != nil {
			return err
		}
	}

	a.registerChecks(cred)

	if cfg.Admin.Enabled {
		a.admin = server.New(server.Options{
			ListenAddress:   cfg.Admin.ListenAddress,
			MetricsPath:     cfg.Telemetry.Metrics.Path,
			Metrics:         a.collector,
			Checker:         a.checker,
			Version:         Version,
			Commit:          GitCommit,
			BuildTime:       BuildDate,
			ShutdownTimeout: cfg.Listener.ShutdownTimeout,
			Logger:          logger,
		})
	}

	return nil
}

func (a *app) registerChecks(cred *securityTLS.CredentialMaterial) {
	a.checker.Register("listener", func(context.Context) error {
		if !a.relay.Ready() {
			return errors.New("relay not accepting connections")
		}
		return nil
	})
	a.checker.Register("certificate", func(context.Context) error {
		leaf, err := cred.Leaf()
		if err != nil {
			return err
		}
		return securityTLS.ValidateX509Certificate(leaf)
	})
	if store := a.store; store != nil {
		a.checker.Register("journal", func(ctx context.Context) error {
			_, err := store.Count(ctx, &journal.Query{Limit: 1})
			return err
		})
	}
}

// serve runs the relay on ln alongside the admin server, credential
// monitors and journal pruning until ctx is cancelled or a component fails.
// The relay drains in-flight connections before serve returns.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	defer a.close()

	if a.monitor != nil {
		if err := a.monitor.Start(); err != nil {
			_ = ln.Close()
			return err
		}
		defer a.monitor.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.scheduler != nil {
		if err := a.scheduler.Start(gctx); err != nil {
			_ = ln.Close()
			return err
		}
		defer a.scheduler.Stop()
	}

	g.Go(func() error {
		err := a.relay.Serve(gctx, ln)
		if errors.Is(err, relay.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Listener.ShutdownTimeout)
		defer cancel()
		if err := a.relay.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay shutdown: %w", err)
		}
		return nil
	})

	if a.admin != nil {
		g.Go(func() error { return a.admin.Start(gctx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Watch(gctx) })
	}

	return g.Wait()
}

// close flushes the journal and tracer. It is safe on a partially built app.
func (a *app) close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Error("failed to close journal recorder", "error", err)
		}
		a.recorder = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close journal storage", "error", err)
		}
		a.store = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.Tracing.Timeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to flush traces", "error", err)
		}
		a.tracer = nil
	}
}
