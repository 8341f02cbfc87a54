package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/givelift/send-scheduler/internal/dispatch"
	"github.com/givelift/send-scheduler/internal/domain"
)

func newTestService(tasks *fakeTaskRepo) *Service {
	return NewService(tasks, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmit_CreatesPendingTask(t *testing.T) {
	var created *domain.TriggerTask
	tasks := &fakeTaskRepo{
		create: func(_ context.Context, task *domain.TriggerTask) (*domain.TriggerTask, error) {
			created = task
			out := *task
			out.ID = "task-1"
			return &out, nil
		},
	}

	fireAt := time.Date(2026, time.January, 5, 14, 0, 0, 0, time.UTC)
	id, err := newTestService(tasks).Submit(context.Background(), dispatch.Task{
		SendJobID:      "job-1",
		EmailID:        "e1",
		SessionID:      "sess-1",
		OrganizationID: "org-1",
	}, fireAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "task-1" {
		t.Errorf("returned id %q, want task-1", id)
	}
	if created.Status != domain.TaskPending {
		t.Errorf("task created in state %q, want pending", created.Status)
	}
	if !created.FireAt.Equal(fireAt) {
		t.Errorf("task fires at %v, want %v", created.FireAt, fireAt)
	}
	if created.SendJobID != "job-1" || created.EmailID != "e1" {
		t.Errorf("task payload = %+v", created)
	}
	if created.MaxRetries == 0 {
		t.Error("task created without a retry budget")
	}
}

func TestCancel_WrapsRepositoryError(t *testing.T) {
	tasks := &fakeTaskRepo{
		cancelPending: func(context.Context, string) error {
			return domain.ErrTaskNotFound
		},
	}

	err := newTestService(tasks).Cancel(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("want wrapped ErrTaskNotFound, got %v", err)
	}
}
