// Package runner is a postgres-backed implementation of the delayed-task
// service the dispatcher submits to: tasks sleep in a table until their
// fire-at instant, a polling worker delivers them, and a reaper recovers
// tasks stranded by crashed workers.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/givelift/send-scheduler/internal/dispatch"
	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/repository"
)

const defaultMaxRetries = 3

// Service implements dispatch.Runner on top of the trigger task table.
type Service struct {
	tasks  repository.TriggerTaskRepository
	logger *slog.Logger
}

func NewService(tasks repository.TriggerTaskRepository, logger *slog.Logger) *Service {
	return &Service{tasks: tasks, logger: logger.With("component", "runner")}
}

var _ dispatch.Runner = (*Service)(nil)

func (s *Service) Submit(ctx context.Context, task dispatch.Task, fireAt time.Time) (string, error) {
	created, err := s.tasks.Create(ctx, &domain.TriggerTask{
		SendJobID:      task.SendJobID,
		EmailID:        task.EmailID,
		SessionID:      task.SessionID,
		OrganizationID: task.OrganizationID,
		FireAt:         fireAt,
		Status:         domain.TaskPending,
		MaxRetries:     defaultMaxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("create trigger task: %w", err)
	}
	return created.ID, nil
}

// Cancel marks a pending task cancelled. A task that already started
// running cannot be recalled; the caller treats that as a tolerable race.
func (s *Service) Cancel(ctx context.Context, triggerJobID string) error {
	if err := s.tasks.CancelPending(ctx, triggerJobID); err != nil {
		return fmt.Errorf("cancel trigger task %s: %w", triggerJobID, err)
	}
	return nil
}
