package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/app"
	"github.com/ETAnderson/merchantdesk/internal/config"
	"github.com/ETAnderson/merchantdesk/internal/logging"
	"github.com/ETAnderson/merchantdesk/internal/queue"
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
	logger = logger.With(zap.String("service", "api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{ServiceName: "merchantdesk-api", Env: cfg.Env, Stdout: cfg.OTelStdout})
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	if mem, ok := a.Queue.(*queue.MemoryDriver); ok && cfg.QueueInlineWorker {
		r := worker.Runner{
			Queue:     mem,
			Executor:  &worker.FollowUpProcessor{Store: a.Store, Log: logger},
			PollEvery: time.Second,
			Log:       logger,
		}
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inline worker stopped", zap.Error(err))
			}
		}()
		logger.Info("inline queue worker started")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting", zap.String("env", cfg.Env), zap.String("addr", server.Addr))

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(logger, server, cancel)

	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	_ = shutdownTracing(tctx)
}

func waitForShutdown(logger *zap.Logger, server *http.Server, cancel func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("shutdown signal received")

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	_ = server.Shutdown(ctx)
	cancel()
	logger.Info("shutdown complete")
}
