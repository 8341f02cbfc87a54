package repository

import (
	"context"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
)

// Usecases depend on these interfaces, never on the postgres package
// directly, so repositories can be swapped for fakes in tests.
type EmailRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Email, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Email, error)

	// MarkScheduled records a fresh send-job assignment on the email row.
	MarkScheduled(ctx context.Context, id, sendJobID string, scheduledAt time.Time) error

	// MarkSent flips the terminal sent flag and stamps the send time.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// SetStatus updates send_status for a batch of emails.
	SetStatus(ctx context.Context, ids []string, status domain.SendStatus) error

	// ResetToPending returns emails to the pending pool, clearing the send
	// job reference and scheduled time so a later pass starts clean.
	ResetToPending(ctx context.Context, ids []string) error
}
