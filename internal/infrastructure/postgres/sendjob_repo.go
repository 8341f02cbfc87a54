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

type SendJobRepository struct {
	pool *pgxpool.Pool
}

func NewSendJobRepository(pool *pgxpool.Pool) *SendJobRepository {
	return &SendJobRepository{pool: pool}
}

const sendJobColumns = `
	id, email_id, session_id, organization_id, scheduled_time,
	status, trigger_job_id, actual_send_time, created_at, updated_at`

func (r *SendJobRepository) Create(ctx context.Context, job *domain.SendJob) (*domain.SendJob, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO send_jobs (email_id, session_id, organization_id, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+sendJobColumns,
		job.EmailID, job.SessionID, job.OrganizationID, job.ScheduledTime, job.Status)
	return scanSendJob(row)
}

func (r *SendJobRepository) GetByID(ctx context.Context, id string) (*domain.SendJob, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sendJobColumns+` FROM send_jobs WHERE id = $1`, id)
	return scanSendJob(row)
}

func (r *SendJobRepository) SetTriggerJobID(ctx context.Context, id, triggerJobID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE send_jobs
		SET    trigger_job_id = $2, updated_at = NOW()
		WHERE id = $1`,
		id, triggerJobID)
	if err != nil {
		return fmt.Errorf("set trigger job id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSendJobNotFound
	}
	return nil
}

func (r *SendJobRepository) ListScheduledBySession(ctx context.Context, sessionID string) ([]*domain.SendJob, error) {
	return r.listScheduled(ctx, "session_id", sessionID)
}

func (r *SendJobRepository) ListScheduledByOrganization(ctx context.Context, orgID string) ([]*domain.SendJob, error) {
	return r.listScheduled(ctx, "organization_id", orgID)
}

func (r *SendJobRepository) listScheduled(ctx context.Context, column, value string) ([]*domain.SendJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sendJobColumns+` FROM send_jobs
		WHERE `+column+` = $1 AND status = 'scheduled'
		ORDER BY scheduled_time ASC`, value)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.SendJob
	for rows.Next() {
		j, err := scanSendJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SendJobRepository) MarkCancelled(ctx context.Context, ids []string) error {
	// Only scheduled jobs can move to cancelled — settled jobs are left
	// alone even when a caller passes a stale id.
	_, err := r.pool.Exec(ctx, `
		UPDATE send_jobs
		SET    status = 'cancelled', updated_at = NOW()
		WHERE id = ANY($1) AND status = 'scheduled'`,
		ids)
	if err != nil {
		return fmt.Errorf("cancel send jobs: %w", err)
	}
	return nil
}

// Complete is the at-least-once guard: the status filter makes the first
// trigger fire win and every duplicate observe ErrSendJobNotFound.
func (r *SendJobRepository) Complete(ctx context.Context, id string, actualSendTime time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE send_jobs
		SET    status = 'completed', actual_send_time = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`,
		id, actualSendTime)
	if err != nil {
		return fmt.Errorf("complete send job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSendJobNotFound
	}
	return nil
}

func (r *SendJobRepository) Fail(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE send_jobs
		SET    status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`,
		id)
	if err != nil {
		return fmt.Errorf("fail send job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSendJobNotFound
	}
	return nil
}

func (r *SendJobRepository) CountSentBetween(ctx context.Context, orgID string, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM send_jobs
		WHERE organization_id = $1
		  AND status = 'completed'
		  AND actual_send_time >= $2
		  AND actual_send_time <  $3`,
		orgID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent: %w", err)
	}
	return count, nil
}

func scanSendJob(row rowScanner) (*domain.SendJob, error) {
	var j domain.SendJob
	err := row.Scan(
		&j.ID, &j.EmailID, &j.SessionID, &j.OrganizationID, &j.ScheduledTime,
		&j.Status, &j.TriggerJobID, &j.ActualSendTime, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSendJobNotFound
		}
		return nil, fmt.Errorf("scan send job: %w", err)
	}
	return &j, nil
}
