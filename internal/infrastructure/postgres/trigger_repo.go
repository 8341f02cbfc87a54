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

type TriggerTaskRepository struct {
	pool *pgxpool.Pool
}

func NewTriggerTaskRepository(pool *pgxpool.Pool) *TriggerTaskRepository {
	return &TriggerTaskRepository{pool: pool}
}

const taskColumns = `
	id, send_job_id, email_id, session_id, organization_id, fire_at,
	status, retry_count, max_retries, claimed_at, claimed_by,
	heartbeat_at, completed_at, last_error, created_at, updated_at`

func (r *TriggerTaskRepository) Create(ctx context.Context, t *domain.TriggerTask) (*domain.TriggerTask, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO trigger_tasks (
			send_job_id, email_id, session_id, organization_id,
			fire_at, status, max_retries
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns,
		t.SendJobID, t.EmailID, t.SessionID, t.OrganizationID,
		t.FireAt, t.Status, t.MaxRetries)
	return scanTask(row)
}

func (r *TriggerTaskRepository) CancelPending(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trigger_tasks
		SET    status = 'cancelled', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TriggerTaskRepository) Claim(ctx context.Context, workerID string, limit int) ([]*domain.TriggerTask, error) {
	// FOR UPDATE SKIP LOCKED prevents double-execution across workers.
	rows, err := r.pool.Query(ctx, `
		UPDATE trigger_tasks
		SET    status       = 'running',
		       claimed_at   = NOW(),
		       claimed_by   = $1,
		       heartbeat_at = NOW(),
		       updated_at   = NOW()
		WHERE id IN (
			SELECT id FROM trigger_tasks
			WHERE  status  = 'pending'
			  AND  fire_at <= NOW()
			ORDER BY fire_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.TriggerTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TriggerTaskRepository) UpdateHeartbeat(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trigger_tasks SET heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'`, id)
	return err
}

func (r *TriggerTaskRepository) Complete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trigger_tasks SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *TriggerTaskRepository) Fail(ctx context.Context, id string, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trigger_tasks SET status = 'failed', last_error = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, lastError)
	return err
}

func (r *TriggerTaskRepository) Reschedule(ctx context.Context, id string, lastError string, retryAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE trigger_tasks
		SET    status       = 'pending',
		       retry_count  = retry_count + 1,
		       last_error   = $2,
		       fire_at      = $3,
		       claimed_at   = NULL,
		       claimed_by   = NULL,
		       heartbeat_at = NULL,
		       updated_at   = NOW()
		WHERE id = $1`, id, lastError, retryAt)
	return err
}

func (r *TriggerTaskRepository) RescheduleStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trigger_tasks
		SET    status       = 'pending',
		       retry_count  = retry_count + 1,
		       last_error   = 'worker timeout',
		       claimed_at   = NULL,
		       claimed_by   = NULL,
		       heartbeat_at = NULL,
		       updated_at   = NOW()
		WHERE id IN (
			SELECT id FROM trigger_tasks
			WHERE  status       = 'running'
			  AND  heartbeat_at < $1
			  AND  retry_count  < max_retries
			ORDER BY heartbeat_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *TriggerTaskRepository) FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trigger_tasks
		SET    status      = 'failed',
		       last_error  = 'worker timeout: max retries exceeded',
		       completed_at = NOW(),
		       updated_at  = NOW()
		WHERE id IN (
			SELECT id FROM trigger_tasks
			WHERE  status       = 'running'
			  AND  heartbeat_at < $1
			  AND  retry_count  >= max_retries
			ORDER BY heartbeat_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *TriggerTaskRepository) PurgeSettled(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM trigger_tasks
		WHERE status IN ('completed', 'cancelled', 'failed')
		  AND completed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTask(row rowScanner) (*domain.TriggerTask, error) {
	var t domain.TriggerTask
	err := row.Scan(
		&t.ID, &t.SendJobID, &t.EmailID, &t.SessionID, &t.OrganizationID, &t.FireAt,
		&t.Status, &t.RetryCount, &t.MaxRetries, &t.ClaimedAt, &t.ClaimedBy,
		&t.HeartbeatAt, &t.CompletedAt, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}
