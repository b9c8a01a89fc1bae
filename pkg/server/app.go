package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"YieldGuard/internal/usecase"
	"YieldGuard/pkg/config"
	xhttp "YieldGuard/pkg/http"
	pkgkafka "YieldGuard/pkg/kafka"
	applogger "YieldGuard/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the application lifecycle: the ops listener, the
// background snapshot collector and the optional audit ingest consumer.
// Quotes is the embeddable query surface; the binary itself exposes no
// public data-plane routes.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	collector  *usecase.SnapshotCollector
	consumer   *pkgkafka.Consumer
	ingest     pkgkafka.MessageHandler
	httpServer *xhttp.Server
	closers    []closer

	Quotes *usecase.QuoteUseCase
}

// New creates an App. Collector may be nil when the background poller is
// disabled.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, collector *usecase.SnapshotCollector) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		collector: collector,
	}
}

// AttachIngest wires the audit ingest consumer. Both may be nil when the
// Kafka-to-ClickHouse bridge is disabled.
func (a *App) AttachIngest(consumer *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.ingest = h
}

// AddCloser registers an infrastructure client to close on shutdown, in
// registration order.
func (a *App) AddCloser(name string, fn func() error) {
	if fn == nil {
		return
	}
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Server.RequestMetrics {
		serverOpts = append(serverOpts, xhttp.WithRequestMetrics(a.log, a.cfg.Server.SlowThreshold))
	}
	a.httpServer = xhttp.NewServer(a.handler, serverOpts...)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("snapshot collector error", applogger.Error(err))
			}
		}()
	}

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("audit ingest started", applogger.String("topic", a.ingest.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("ops listener started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops services in dependency order: stop producing work, drain
// the listener, stop consuming, then close infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	// Flush any aggregated logs before the producer goes away.
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("client", c.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
