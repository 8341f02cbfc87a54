package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EmailRepository struct {
	pool *pgxpool.Pool
}

func NewEmailRepository(pool *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{pool: pool}
}

const emailColumns = `
	id, session_id, organization_id, recipient_name, recipient_email,
	subject, body, sender_id, send_status, scheduled_send_time,
	send_job_id, is_sent, created_at, updated_at`

func (r *EmailRepository) GetByID(ctx context.Context, id string) (*domain.Email, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	return scanEmail(row)
}

func (r *EmailRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Email, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE session_id = $1 ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	var emails []*domain.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *EmailRepository) MarkScheduled(ctx context.Context, id, sendJobID string, scheduledAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE emails
		SET    send_status         = 'scheduled',
		       send_job_id         = $2,
		       scheduled_send_time = $3,
		       updated_at          = NOW()
		WHERE id = $1 AND NOT is_sent`,
		id, sendJobID, scheduledAt)
	if err != nil {
		return fmt.Errorf("mark email scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmailNotFound
	}
	return nil
}

func (r *EmailRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE emails
		SET    send_status = 'sent',
		       is_sent     = TRUE,
		       sent_at     = $2,
		       updated_at  = NOW()
		WHERE id = $1`,
		id, sentAt)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmailNotFound
	}
	return nil
}

func (r *EmailRepository) SetStatus(ctx context.Context, ids []string, status domain.SendStatus) error {
	// Sent emails are terminal; the guard here backs up the state checks
	// in the callers.
	_, err := r.pool.Exec(ctx, `
		UPDATE emails
		SET    send_status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND NOT is_sent`,
		ids, status)
	if err != nil {
		return fmt.Errorf("set email status: %w", err)
	}
	return nil
}

func (r *EmailRepository) ResetToPending(ctx context.Context, ids []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE emails
		SET    send_status         = 'pending',
		       send_job_id         = NULL,
		       scheduled_send_time = NULL,
		       updated_at          = NOW()
		WHERE id = ANY($1) AND NOT is_sent`,
		ids)
	if err != nil {
		return fmt.Errorf("reset emails to pending: %w", err)
	}
	return nil
}

func scanEmail(row rowScanner) (*domain.Email, error) {
	var e domain.Email
	err := row.Scan(
		&e.ID, &e.SessionID, &e.OrganizationID, &e.RecipientName, &e.RecipientEmail,
		&e.Subject, &e.Body, &e.SenderID, &e.SendStatus, &e.ScheduledSendTime,
		&e.SendJobID, &e.IsSent, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, fmt.Errorf("scan email: %w", err)
	}
	return &e, nil
}
