package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/email"
	"github.com/givelift/send-scheduler/internal/metrics"
	"github.com/givelift/send-scheduler/internal/repository"
)

// Worker polls for due trigger tasks, delivers the referenced email, and
// reports the outcome back to the send job and email rows.
type Worker struct {
	id           string
	tasks        repository.TriggerTaskRepository
	jobs         repository.SendJobRepository
	emails       repository.EmailRepository
	sender       email.Sender
	logger       *slog.Logger
	pollInterval time.Duration
	concurrency  int
	sem          chan struct{}
}

func NewWorker(
	tasks repository.TriggerTaskRepository,
	jobs repository.SendJobRepository,
	emails repository.EmailRepository,
	sender email.Sender,
	logger *slog.Logger,
	pollInterval time.Duration,
	concurrency int,
) *Worker {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Worker{
		id:           id,
		tasks:        tasks,
		jobs:         jobs,
		emails:       emails,
		sender:       sender,
		logger:       logger.With("worker_id", id),
		pollInterval: pollInterval,
		concurrency:  concurrency,
		sem:          make(chan struct{}, concurrency),
	}
}

func (w *Worker) Start(ctx context.Context) {
	metrics.WorkerStartTime.SetToCurrentTime()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("runner worker started", "concurrency", w.concurrency)

	for {
		select {
		case <-ctx.Done():
			metrics.WorkerShutdownsTotal.Inc()
			w.logger.Info("runner worker shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	available := cap(w.sem) - len(w.sem)
	if available == 0 {
		return
	}

	tasks, err := w.tasks.Claim(ctx, w.id, available)
	if err != nil {
		w.logger.Error("claim trigger tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	w.logger.Info("claimed trigger tasks", "count", len(tasks))

	for _, task := range tasks {
		w.sem <- struct{}{}
		go func(t *domain.TriggerTask) {
			metrics.TasksInFlight.Inc()
			defer metrics.TasksInFlight.Dec()
			defer func() { <-w.sem }()
			w.runTask(ctx, t)
		}(task)
	}
}

func (w *Worker) runTask(ctx context.Context, task *domain.TriggerTask) {
	metrics.TaskPickupLatency.Observe(time.Since(task.FireAt).Seconds())

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go w.heartbeat(heartbeatCtx, task.ID)

	// Claim the send job first. Trigger execution is at-least-once, so a
	// job that is no longer in scheduled state (already completed by a
	// duplicate fire, or cancelled by a pause that raced us) means the
	// task settles without sending.
	job, err := w.jobs.GetByID(ctx, task.SendJobID)
	if err != nil {
		w.settleWithoutSend(ctx, task, "send job missing")
		return
	}
	if job.Status != domain.JobScheduled {
		w.settleWithoutSend(ctx, task, fmt.Sprintf("send job in state %s", job.Status))
		return
	}

	target, err := w.emails.GetByID(ctx, task.EmailID)
	if err != nil || target.IsSent {
		w.settleWithoutSend(ctx, task, "email missing or already sent")
		return
	}

	start := time.Now()
	sendErr := w.sender.Send(ctx, email.Message{
		To:      target.RecipientEmail,
		ToName:  target.RecipientName,
		Subject: target.Subject,
		HTML:    target.Body,
	})
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	if sendErr == nil {
		w.complete(ctx, task, target.ID)
		return
	}
	w.handleFailure(ctx, task, sendErr)
}

func (w *Worker) complete(ctx context.Context, task *domain.TriggerTask, emailID string) {
	sentAt := time.Now()
	if err := w.jobs.Complete(ctx, task.SendJobID, sentAt); err != nil {
		// Lost the at-least-once race: another fire already completed the
		// job. Settle the task and leave the email alone.
		w.logger.Warn("complete send job", "send_job_id", task.SendJobID, "error", err)
		w.settleWithoutSend(ctx, task, "job completed elsewhere")
		return
	}
	if err := w.emails.MarkSent(ctx, emailID, sentAt); err != nil {
		w.logger.Error("mark email sent", "email_id", emailID, "error", err)
	}
	if err := w.tasks.Complete(ctx, task.ID); err != nil {
		w.logger.Error("complete trigger task", "task_id", task.ID, "error", err)
	}
	metrics.SendsTotal.WithLabelValues("success").Inc()
	w.logger.Info("email sent", "email_id", emailID, "send_job_id", task.SendJobID)
}

func (w *Worker) handleFailure(ctx context.Context, task *domain.TriggerTask, sendErr error) {
	errMsg := sendErr.Error()

	if task.RetryCount < task.MaxRetries {
		retryAt := time.Now().Add(retryDelay(task.RetryCount))
		if err := w.tasks.Reschedule(ctx, task.ID, errMsg, retryAt); err != nil {
			w.logger.Error("reschedule trigger task", "task_id", task.ID, "error", err)
		}
		metrics.SendsTotal.WithLabelValues("retry").Inc()
		w.logger.Warn("send failed, will retry",
			"task_id", task.ID,
			"error", errMsg,
			"attempt", task.RetryCount+1,
			"max_retries", task.MaxRetries,
			"retry_at", retryAt,
		)
		return
	}

	if err := w.tasks.Fail(ctx, task.ID, errMsg); err != nil {
		w.logger.Error("fail trigger task", "task_id", task.ID, "error", err)
	}
	if err := w.jobs.Fail(ctx, task.SendJobID); err != nil {
		w.logger.Error("fail send job", "send_job_id", task.SendJobID, "error", err)
	}
	if err := w.emails.SetStatus(ctx, []string{task.EmailID}, domain.SendStatusFailed); err != nil {
		w.logger.Error("mark email failed", "email_id", task.EmailID, "error", err)
	}
	metrics.SendsTotal.WithLabelValues("failed").Inc()
	w.logger.Warn("send permanently failed", "task_id", task.ID, "email_id", task.EmailID, "error", errMsg)
}

// settleWithoutSend closes a task whose send job or email is no longer
// actionable. Not an error path — pauses and duplicate fires land here.
func (w *Worker) settleWithoutSend(ctx context.Context, task *domain.TriggerTask, reason string) {
	if err := w.tasks.Complete(ctx, task.ID); err != nil {
		w.logger.Error("settle trigger task", "task_id", task.ID, "error", err)
	}
	metrics.SendsTotal.WithLabelValues("skipped").Inc()
	w.logger.Info("trigger task settled without send", "task_id", task.ID, "reason", reason)
}

func (w *Worker) heartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tasks.UpdateHeartbeat(ctx, taskID); err != nil {
				w.logger.Warn("heartbeat failed", "task_id", taskID, "error", err)
			}
		}
	}
}

// retryDelay backs off exponentially with jitter, capped at an hour.
func retryDelay(retryCount int) time.Duration {
	base := 30 * time.Second
	delay := time.Duration(float64(base) * math.Pow(2, float64(retryCount)))
	delay = min(delay, time.Hour)
	jitter := time.Duration(rand.Int63n(int64(delay/2))) - delay/4
	return delay + jitter
}
