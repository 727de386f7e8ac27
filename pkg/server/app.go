package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drreport/internal/usecase"
	"drreport/pkg/cache"
	pkgch "drreport/pkg/clickhouse"
	"drreport/pkg/config"
	xhttp "drreport/pkg/http"
	pkgkafka "drreport/pkg/kafka"
	applogger "drreport/pkg/logger"
	"drreport/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP read API, the
// Kafka report worker, the webhook queue, and the daily pipeline schedule.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	orch        *usecase.Orchestrator
	notifyQueue *queue.RedisQueue
	chClient    *pkgch.Client
	producer    *pkgkafka.Producer
	redis       *cache.RedisCache
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	orch *usecase.Orchestrator,
	notifyQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		consumer:    consumer,
		kh:          kh,
		orch:        orch,
		notifyQueue: notifyQueue,
		chClient:    chClient,
		producer:    producer,
		redis:       redis,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.notifyQueue != nil {
		if err := a.notifyQueue.Start(); err != nil {
			a.l.Error("notify queue start error", applogger.Error(err))
		} else {
			a.notifyQueue.StartRetryProcessor()
			a.l.Info("notify queue started")
		}
	}

	if a.cfg.Market.RunAt != "" {
		go a.runScheduler(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runScheduler fires one pipeline run per day at the configured market-local
// wall clock time.
func (a *App) runScheduler(ctx context.Context) {
	loc := a.cfg.MarketLocation()
	at, err := time.Parse("15:04", a.cfg.Market.RunAt)
	if err != nil {
		a.l.Error("invalid run_at, scheduler disabled",
			applogger.String("run_at", a.cfg.Market.RunAt), applogger.Error(err))
		return
	}

	for {
		now := time.Now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		a.l.Info("next pipeline run scheduled", applogger.String("at", next.Format(time.RFC3339)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		summary, err := a.orch.Run(runCtx)
		cancel()
		if err != nil {
			a.l.Error("scheduled run failed", applogger.Error(err))
			continue
		}
		a.l.Info("scheduled run complete",
			applogger.String("business_date", summary.BusinessDate),
			applogger.Int("fetched_ok", len(summary.Fetched.Succeeded())),
			applogger.Int("dispatched", len(summary.Dispatched)),
		)
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.notifyQueue != nil {
		if err := a.notifyQueue.Stop(ctx); err != nil {
			a.l.Warn("notify queue stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
