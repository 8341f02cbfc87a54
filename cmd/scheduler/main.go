package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/givelift/send-scheduler/config"
	"github.com/givelift/send-scheduler/internal/email"
	"github.com/givelift/send-scheduler/internal/health"
	"github.com/givelift/send-scheduler/internal/infrastructure/postgres"
	ctxlog "github.com/givelift/send-scheduler/internal/log"
	"github.com/givelift/send-scheduler/internal/metrics"
	"github.com/givelift/send-scheduler/internal/runner"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	taskRepo := postgres.NewTriggerTaskRepository(pool)
	jobRepo := postgres.NewSendJobRepository(pool)
	emailRepo := postgres.NewEmailRepository(pool)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	worker := runner.NewWorker(
		taskRepo,
		jobRepo,
		emailRepo,
		sender,
		logger,
		time.Duration(cfg.PollIntervalSec)*time.Second,
		cfg.WorkerCount,
	)
	go worker.Start(ctx)

	// heartbeat fires every 10s — 30s timeout means 3 missed beats before a task is stale
	reaper := runner.NewReaper(taskRepo, logger, 30*time.Second, 30*time.Second)
	go reaper.Start(ctx)

	purger := cron.New()
	_, err = purger.AddFunc(cfg.TaskPurgeCron, func() {
		cutoff := time.Now().AddDate(0, 0, -cfg.TaskRetentionDays)
		purged, err := taskRepo.PurgeSettled(context.Background(), cutoff)
		if err != nil {
			logger.Error("purge settled tasks", "error", err)
			return
		}
		if purged > 0 {
			logger.Info("purged settled tasks", "count", purged, "older_than", cutoff)
		}
	})
	if err != nil {
		stop()
		log.Fatalf("purge cron: %v", err)
	}
	purger.Start()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	<-purger.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("send runner shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
