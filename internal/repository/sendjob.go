package repository

import (
	"context"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
)

type SendJobRepository interface {
	Create(ctx context.Context, job *domain.SendJob) (*domain.SendJob, error)
	GetByID(ctx context.Context, id string) (*domain.SendJob, error)

	// SetTriggerJobID records the external runner's id after a successful
	// submit. The job row must already exist.
	SetTriggerJobID(ctx context.Context, id, triggerJobID string) error

	ListScheduledBySession(ctx context.Context, sessionID string) ([]*domain.SendJob, error)
	ListScheduledByOrganization(ctx context.Context, orgID string) ([]*domain.SendJob, error)

	MarkCancelled(ctx context.Context, ids []string) error

	// Complete transitions scheduled -> completed and stamps the actual
	// send time. Returns domain.ErrSendJobNotFound when the job is not in
	// scheduled state anymore — the at-least-once guard for duplicate
	// trigger fires.
	Complete(ctx context.Context, id string, actualSendTime time.Time) error
	Fail(ctx context.Context, id string) error

	// CountSentBetween counts completed jobs whose actual send time falls
	// in [from, to). Feeds the sent-today quota bookkeeping.
	CountSentBetween(ctx context.Context, orgID string, from, to time.Time) (int, error)
}
