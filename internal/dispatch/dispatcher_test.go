package dispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/givelift/send-scheduler/internal/dispatch"
	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/schedule"
)

// ---- fakes ----

type fakeRunner struct {
	submit func(ctx context.Context, task dispatch.Task, fireAt time.Time) (string, error)
	cancel func(ctx context.Context, triggerJobID string) error
}

func (r *fakeRunner) Submit(ctx context.Context, task dispatch.Task, fireAt time.Time) (string, error) {
	return r.submit(ctx, task, fireAt)
}

func (r *fakeRunner) Cancel(ctx context.Context, triggerJobID string) error {
	return r.cancel(ctx, triggerJobID)
}

type fakeJobRepo struct {
	create          func(ctx context.Context, job *domain.SendJob) (*domain.SendJob, error)
	setTriggerJobID func(ctx context.Context, id, triggerJobID string) error
	fail            func(ctx context.Context, id string) error
}

func (r *fakeJobRepo) Create(ctx context.Context, job *domain.SendJob) (*domain.SendJob, error) {
	return r.create(ctx, job)
}

func (r *fakeJobRepo) GetByID(context.Context, string) (*domain.SendJob, error) {
	panic("not used")
}

func (r *fakeJobRepo) SetTriggerJobID(ctx context.Context, id, triggerJobID string) error {
	return r.setTriggerJobID(ctx, id, triggerJobID)
}

func (r *fakeJobRepo) ListScheduledBySession(context.Context, string) ([]*domain.SendJob, error) {
	panic("not used")
}

func (r *fakeJobRepo) ListScheduledByOrganization(context.Context, string) ([]*domain.SendJob, error) {
	panic("not used")
}

func (r *fakeJobRepo) MarkCancelled(context.Context, []string) error {
	panic("not used")
}

func (r *fakeJobRepo) Complete(context.Context, string, time.Time) error {
	panic("not used")
}

func (r *fakeJobRepo) Fail(ctx context.Context, id string) error {
	return r.fail(ctx, id)
}

func (r *fakeJobRepo) CountSentBetween(context.Context, string, time.Time, time.Time) (int, error) {
	panic("not used")
}

type fakeEmailRepo struct {
	markScheduled func(ctx context.Context, id, sendJobID string, scheduledAt time.Time) error
	setStatus     func(ctx context.Context, ids []string, status domain.SendStatus) error
}

func (r *fakeEmailRepo) GetByID(context.Context, string) (*domain.Email, error) {
	panic("not used")
}

func (r *fakeEmailRepo) ListBySession(context.Context, string) ([]*domain.Email, error) {
	panic("not used")
}

func (r *fakeEmailRepo) MarkScheduled(ctx context.Context, id, sendJobID string, scheduledAt time.Time) error {
	return r.markScheduled(ctx, id, sendJobID, scheduledAt)
}

func (r *fakeEmailRepo) MarkSent(context.Context, string, time.Time) error {
	panic("not used")
}

func (r *fakeEmailRepo) SetStatus(ctx context.Context, ids []string, status domain.SendStatus) error {
	return r.setStatus(ctx, ids, status)
}

func (r *fakeEmailRepo) ResetToPending(context.Context, []string) error {
	panic("not used")
}

// ---- helpers ----

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assignment(emailID string, at time.Time) schedule.Assignment {
	return schedule.Assignment{
		Item: schedule.Item{
			EmailID:        emailID,
			SessionID:      "sess-1",
			OrganizationID: "org-1",
		},
		ScheduledTime: at,
	}
}

var fireAt = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

// ---- Dispatch ----

func TestDispatch_EffectOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(ev string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	jobs := &fakeJobRepo{
		create: func(_ context.Context, job *domain.SendJob) (*domain.SendJob, error) {
			record("create")
			out := *job
			out.ID = "job-1"
			return &out, nil
		},
		setTriggerJobID: func(_ context.Context, id, triggerJobID string) error {
			record("set-trigger")
			if id != "job-1" || triggerJobID != "trig-1" {
				t.Errorf("SetTriggerJobID(%q, %q), want (job-1, trig-1)", id, triggerJobID)
			}
			return nil
		},
	}
	emails := &fakeEmailRepo{
		markScheduled: func(_ context.Context, id, sendJobID string, scheduledAt time.Time) error {
			record("mark-scheduled")
			if id != "e1" || sendJobID != "job-1" || !scheduledAt.Equal(fireAt) {
				t.Errorf("MarkScheduled(%q, %q, %v)", id, sendJobID, scheduledAt)
			}
			return nil
		},
	}
	runner := &fakeRunner{
		submit: func(_ context.Context, task dispatch.Task, at time.Time) (string, error) {
			record("submit")
			if task.SendJobID != "job-1" || task.EmailID != "e1" || !at.Equal(fireAt) {
				t.Errorf("Submit(%+v, %v)", task, at)
			}
			return "trig-1", nil
		},
	}

	d := dispatch.New(runner, jobs, emails, discardLogger())
	dispatched, err := d.Dispatch(context.Background(), []schedule.Assignment{assignment("e1", fireAt)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d jobs, want 1", len(dispatched))
	}
	if dispatched[0].TriggerJobID == nil || *dispatched[0].TriggerJobID != "trig-1" {
		t.Errorf("trigger job id not recorded on returned job")
	}

	want := []string{"create", "mark-scheduled", "submit", "set-trigger"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestDispatch_SubmitFailureAbandonsOnlyThatItem(t *testing.T) {
	submitErr := errors.New("runner unavailable")

	var mu sync.Mutex
	var failedJobs []string
	var failedEmails []string

	jobs := &fakeJobRepo{
		create: func(_ context.Context, job *domain.SendJob) (*domain.SendJob, error) {
			out := *job
			out.ID = "job-" + job.EmailID
			return &out, nil
		},
		setTriggerJobID: func(context.Context, string, string) error { return nil },
		fail: func(_ context.Context, id string) error {
			mu.Lock()
			defer mu.Unlock()
			failedJobs = append(failedJobs, id)
			return nil
		},
	}
	emails := &fakeEmailRepo{
		markScheduled: func(context.Context, string, string, time.Time) error { return nil },
		setStatus: func(_ context.Context, ids []string, status domain.SendStatus) error {
			mu.Lock()
			defer mu.Unlock()
			if status != domain.SendStatusFailed {
				t.Errorf("abandoned email set to %q, want failed", status)
			}
			failedEmails = append(failedEmails, ids...)
			return nil
		},
	}
	runner := &fakeRunner{
		submit: func(_ context.Context, task dispatch.Task, _ time.Time) (string, error) {
			if task.EmailID == "e2" {
				return "", submitErr
			}
			return "trig-" + task.EmailID, nil
		},
	}

	d := dispatch.New(runner, jobs, emails, discardLogger())
	dispatched, err := d.Dispatch(context.Background(), []schedule.Assignment{
		assignment("e1", fireAt),
		assignment("e2", fireAt.Add(5*time.Minute)),
	})

	var derr *domain.DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("want DispatchError, got %v", err)
	}
	if !errors.Is(err, submitErr) {
		t.Errorf("DispatchError must wrap the runner error, got %v", err)
	}
	if len(dispatched) != 1 || dispatched[0].EmailID != "e1" {
		t.Errorf("dispatched = %v, want only e1's job", dispatched)
	}
	if len(failedJobs) != 1 || failedJobs[0] != "job-e2" {
		t.Errorf("failed jobs = %v, want [job-e2]", failedJobs)
	}
	if len(failedEmails) != 1 || failedEmails[0] != "e2" {
		t.Errorf("failed emails = %v, want [e2]", failedEmails)
	}
}

// ---- CancelJobs ----

func TestCancelJobs_BestEffort(t *testing.T) {
	cancelErr := errors.New("task already fired")

	var mu sync.Mutex
	var cancelledIDs []string
	runner := &fakeRunner{
		cancel: func(_ context.Context, triggerJobID string) error {
			mu.Lock()
			defer mu.Unlock()
			if triggerJobID == "trig-bad" {
				return cancelErr
			}
			cancelledIDs = append(cancelledIDs, triggerJobID)
			return nil
		},
	}

	trigOK, trigBad := "trig-ok", "trig-bad"
	d := dispatch.New(runner, &fakeJobRepo{}, &fakeEmailRepo{}, discardLogger())
	cancelled, failed := d.CancelJobs(context.Background(), []*domain.SendJob{
		{ID: "j1", TriggerJobID: &trigOK},
		{ID: "j2", TriggerJobID: &trigBad},
		{ID: "j3"}, // never submitted, nothing to cancel
	})

	if cancelled != 1 || failed != 1 {
		t.Errorf("cancelled=%d failed=%d, want 1 and 1", cancelled, failed)
	}
	if len(cancelledIDs) != 1 || cancelledIDs[0] != "trig-ok" {
		t.Errorf("cancelled ids = %v, want [trig-ok]", cancelledIDs)
	}
}
