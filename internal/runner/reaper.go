package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/givelift/send-scheduler/internal/metrics"
	"github.com/givelift/send-scheduler/internal/repository"
)

// Reaper recovers trigger tasks stranded in running state by crashed
// workers: tasks with retries left go back to pending, the rest fail.
type Reaper struct {
	tasks            repository.TriggerTaskRepository
	logger           *slog.Logger
	interval         time.Duration
	heartbeatTimeout time.Duration
}

func NewReaper(tasks repository.TriggerTaskRepository, logger *slog.Logger, interval, heartbeatTimeout time.Duration) *Reaper {
	return &Reaper{
		tasks:            tasks,
		logger:           logger.With("component", "reaper"),
		interval:         interval,
		heartbeatTimeout: heartbeatTimeout,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "heartbeat_timeout", r.heartbeatTimeout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	staleCutoff := time.Now().Add(-r.heartbeatTimeout)

	rescheduled, err := r.tasks.RescheduleStale(ctx, staleCutoff, 100)
	if err != nil {
		r.logger.Error("reschedule stale tasks", "error", err)
	} else if rescheduled > 0 {
		metrics.ReaperRescuedTotal.WithLabelValues("rescheduled").Add(float64(rescheduled))
		r.logger.Info("rescheduled stale tasks", "count", rescheduled)
	}

	failed, err := r.tasks.FailStale(ctx, staleCutoff, 100)
	if err != nil {
		r.logger.Error("fail stale tasks", "error", err)
	} else if failed > 0 {
		metrics.ReaperRescuedTotal.WithLabelValues("failed").Add(float64(failed))
		r.logger.Info("permanently failed stale tasks", "count", failed)
	}
}
