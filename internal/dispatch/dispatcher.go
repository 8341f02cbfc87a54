// Package dispatch converts a computed schedule into trigger tasks on the
// external delayed-task runner, persisting the item -> external job id
// mapping along the way.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/metrics"
	"github.com/givelift/send-scheduler/internal/repository"
	"github.com/givelift/send-scheduler/internal/schedule"
)

// Task is the payload handed to the runner for one delayed send.
type Task struct {
	SendJobID      string
	EmailID        string
	SessionID      string
	OrganizationID string
}

// Runner is the external delayed-task execution service. Execution is
// at-least-once; Cancel is best-effort and may race a task that already
// fired.
type Runner interface {
	Submit(ctx context.Context, task Task, fireAt time.Time) (string, error)
	Cancel(ctx context.Context, triggerJobID string) error
}

const defaultConcurrency = 8

type Dispatcher struct {
	runner      Runner
	jobs        repository.SendJobRepository
	emails      repository.EmailRepository
	logger      *slog.Logger
	concurrency int
}

func New(runner Runner, jobs repository.SendJobRepository, emails repository.EmailRepository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner:      runner,
		jobs:        jobs,
		emails:      emails,
		logger:      logger.With("component", "dispatcher"),
		concurrency: defaultConcurrency,
	}
}

// Dispatch creates a send job per assignment and submits it to the runner.
// Side effects per item run in dependency order: the job row must exist
// before the email references it, and before the external id is recorded
// against it. Items fan out concurrently — each touches a disjoint job row
// and email row.
//
// A submit failure aborts only that item: its job is marked failed and its
// email returned to the failed pool, and the first such error is returned
// after the whole batch has been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, assignments []schedule.Assignment) ([]*domain.SendJob, error) {
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	dispatched := make([]*domain.SendJob, 0, len(assignments))
	var firstErr error

	for _, a := range assignments {
		sem <- struct{}{}
		wg.Add(1)
		go func(a schedule.Assignment) {
			defer wg.Done()
			defer func() { <-sem }()

			job, err := d.dispatchOne(ctx, a)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			dispatched = append(dispatched, job)
		}(a)
	}
	wg.Wait()

	metrics.EmailsScheduledTotal.Add(float64(len(dispatched)))
	return dispatched, firstErr
}

func (d *Dispatcher) dispatchOne(ctx context.Context, a schedule.Assignment) (*domain.SendJob, error) {
	job, err := d.jobs.Create(ctx, &domain.SendJob{
		EmailID:        a.Item.EmailID,
		SessionID:      a.Item.SessionID,
		OrganizationID: a.Item.OrganizationID,
		ScheduledTime:  a.ScheduledTime,
		Status:         domain.JobScheduled,
	})
	if err != nil {
		return nil, fmt.Errorf("create send job: %w", err)
	}

	if err := d.emails.MarkScheduled(ctx, a.Item.EmailID, job.ID, a.ScheduledTime); err != nil {
		return nil, fmt.Errorf("mark email scheduled: %w", err)
	}

	triggerID, err := d.runner.Submit(ctx, Task{
		SendJobID:      job.ID,
		EmailID:        a.Item.EmailID,
		SessionID:      a.Item.SessionID,
		OrganizationID: a.Item.OrganizationID,
	}, a.ScheduledTime)
	if err != nil {
		metrics.DispatchFailuresTotal.WithLabelValues("submit").Inc()
		d.logger.ErrorContext(ctx, "submit trigger task", "email_id", a.Item.EmailID, "send_job_id", job.ID, "error", err)
		d.abandonJob(ctx, job)
		return nil, &domain.DispatchError{Op: "submit", JobID: job.ID, Err: err}
	}

	if err := d.jobs.SetTriggerJobID(ctx, job.ID, triggerID); err != nil {
		return nil, fmt.Errorf("record trigger job id: %w", err)
	}

	job.TriggerJobID = &triggerID
	return job, nil
}

// abandonJob unwinds a half-dispatched item after a submit failure so the
// email becomes eligible for a later pass.
func (d *Dispatcher) abandonJob(ctx context.Context, job *domain.SendJob) {
	if err := d.jobs.Fail(ctx, job.ID); err != nil {
		d.logger.ErrorContext(ctx, "mark send job failed", "send_job_id", job.ID, "error", err)
	}
	if err := d.emails.SetStatus(ctx, []string{job.EmailID}, domain.SendStatusFailed); err != nil {
		d.logger.ErrorContext(ctx, "mark email failed", "email_id", job.EmailID, "error", err)
	}
}

// CancelJobs cancels the external trigger for every job, best-effort. A
// failed cancel is logged and counted but never blocks the others — a stale
// task firing against an already-paused email is harmless.
func (d *Dispatcher) CancelJobs(ctx context.Context, jobs []*domain.SendJob) (cancelled, failed int) {
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, job := range jobs {
		if job.TriggerJobID == nil {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(job *domain.SendJob) {
			defer wg.Done()
			defer func() { <-sem }()

			err := d.runner.Cancel(ctx, *job.TriggerJobID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.DispatchFailuresTotal.WithLabelValues("cancel").Inc()
				d.logger.WarnContext(ctx, "cancel trigger task", "send_job_id", job.ID, "trigger_job_id", *job.TriggerJobID, "error", err)
				failed++
				return
			}
			cancelled++
		}(job)
	}
	wg.Wait()
	return cancelled, failed
}
