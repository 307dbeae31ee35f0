package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ETAnderson/merchantdesk/internal/app"
	"github.com/ETAnderson/merchantdesk/internal/config"
	"github.com/ETAnderson/merchantdesk/internal/logging"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/retention"
	"github.com/ETAnderson/merchantdesk/internal/tracing"
	"github.com/ETAnderson/merchantdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{ServiceName: "merchantdesk-worker", Env: cfg.Env, Stdout: cfg.OTelStdout})
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	logger.Info("starting",
		zap.String("env", cfg.Env),
		zap.String("state_backend", cfg.StateBackend),
		zap.Bool("db_dsn_set", cfg.MySQLDSN != ""),
		zap.String("queue_driver", a.Queue.Name()),
		zap.Duration("retention_interval", cfg.RetentionInterval),
	)

	if err := runWorkers(ctx, cfg, a, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}

	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracing(tctx)
	logger.Info("shutdown complete")
}

// runWorkers runs the retention scheduler and, for the Redis driver, the
// asynq server until ctx is done. Memory-driver jobs live in the API
// process and are drained there by its inline runner.
func runWorkers(ctx context.Context, cfg config.Config, a *app.App, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return retention.Scheduler{
			Sweep:    a.Sweeper,
			Interval: cfg.RetentionInterval,
			Log:      logger,
		}.Run(gctx)
	})

	switch q := a.Queue.(type) {
	case *queue.RedisDriver:
		exec := &worker.FollowUpProcessor{Store: a.Store, Log: logger}
		srv, err := worker.NewServer(worker.ServerConfig{
			RedisURL:  cfg.RedisURL(),
			QueueName: q.QueueName(),
			Logger:    logger.Sugar(),
		})
		if err != nil {
			return fmt.Errorf("asynq server init: %w", err)
		}
		if err := srv.Start(worker.NewServeMux(exec)); err != nil {
			return fmt.Errorf("asynq server start: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})
	default:
		logger.Info("memory queue jobs are consumed inline by cmd/api; running retention only",
			zap.String("queue_driver", a.Queue.Name()),
		)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
