package repository

import (
	"context"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
)

// TriggerTaskRepository backs the delayed-task runner.
type TriggerTaskRepository interface {
	Create(ctx context.Context, t *domain.TriggerTask) (*domain.TriggerTask, error)

	// CancelPending marks a pending task cancelled. A task that already
	// fired (running or settled) is left alone and reported via
	// domain.ErrTaskNotFound — cancellation is best-effort.
	CancelPending(ctx context.Context, id string) error

	// Claim atomically moves due pending tasks to running for this worker.
	Claim(ctx context.Context, workerID string, limit int) ([]*domain.TriggerTask, error)
	UpdateHeartbeat(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, lastError string) error
	Reschedule(ctx context.Context, id string, lastError string, retryAt time.Time) error

	// Reaper methods — recover tasks from crashed workers.
	RescheduleStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)
	FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)

	// PurgeSettled deletes completed/cancelled/failed tasks older than the
	// cutoff. Run nightly.
	PurgeSettled(ctx context.Context, olderThan time.Time) (int, error)
}
