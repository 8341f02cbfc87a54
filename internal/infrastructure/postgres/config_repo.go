package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/schedule"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleConfigRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleConfigRepository(pool *pgxpool.Pool) *ScheduleConfigRepository {
	return &ScheduleConfigRepository{pool: pool}
}

func (r *ScheduleConfigRepository) GetOrganization(ctx context.Context, orgID string) (schedule.Config, error) {
	var (
		cfg            schedule.Config
		allowedDays    []int32
		dailySchedules []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT daily_limit, min_gap_minutes, max_gap_minutes, timezone,
		       allowed_days, allowed_start_time, allowed_end_time,
		       allowed_timezone, daily_schedules
		FROM org_schedule_configs
		WHERE organization_id = $1`, orgID).Scan(
		&cfg.DailyLimit, &cfg.MinGapMinutes, &cfg.MaxGapMinutes, &cfg.Timezone,
		&allowedDays, &cfg.AllowedStartTime, &cfg.AllowedEndTime,
		&cfg.AllowedTimezone, &dailySchedules,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.Config{}, domain.ErrConfigNotFound
		}
		return schedule.Config{}, fmt.Errorf("get org config: %w", err)
	}

	cfg.AllowedDays = make([]time.Weekday, len(allowedDays))
	for i, d := range allowedDays {
		cfg.AllowedDays[i] = time.Weekday(d)
	}
	if len(dailySchedules) > 0 {
		if err := json.Unmarshal(dailySchedules, &cfg.DailySchedules); err != nil {
			return schedule.Config{}, fmt.Errorf("decode daily schedules: %w", err)
		}
	}
	return cfg, nil
}

func (r *ScheduleConfigRepository) UpsertOrganization(ctx context.Context, orgID string, cfg schedule.Config) error {
	allowedDays := make([]int32, len(cfg.AllowedDays))
	for i, d := range cfg.AllowedDays {
		allowedDays[i] = int32(d)
	}

	var dailySchedules []byte
	if cfg.DailySchedules != nil {
		b, err := json.Marshal(cfg.DailySchedules)
		if err != nil {
			return fmt.Errorf("encode daily schedules: %w", err)
		}
		dailySchedules = b
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO org_schedule_configs (
			organization_id, daily_limit, min_gap_minutes, max_gap_minutes,
			timezone, allowed_days, allowed_start_time, allowed_end_time,
			allowed_timezone, daily_schedules
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (organization_id) DO UPDATE SET
			daily_limit        = EXCLUDED.daily_limit,
			min_gap_minutes    = EXCLUDED.min_gap_minutes,
			max_gap_minutes    = EXCLUDED.max_gap_minutes,
			timezone           = EXCLUDED.timezone,
			allowed_days       = EXCLUDED.allowed_days,
			allowed_start_time = EXCLUDED.allowed_start_time,
			allowed_end_time   = EXCLUDED.allowed_end_time,
			allowed_timezone   = EXCLUDED.allowed_timezone,
			daily_schedules    = EXCLUDED.daily_schedules,
			updated_at         = NOW()`,
		orgID, cfg.DailyLimit, cfg.MinGapMinutes, cfg.MaxGapMinutes,
		cfg.Timezone, allowedDays, cfg.AllowedStartTime, cfg.AllowedEndTime,
		cfg.AllowedTimezone, dailySchedules)
	if err != nil {
		return fmt.Errorf("upsert org config: %w", err)
	}
	return nil
}

func (r *ScheduleConfigRepository) GetSessionOverride(ctx context.Context, sessionID string) (schedule.Patch, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT patch FROM session_schedule_overrides WHERE session_id = $1`,
		sessionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.Patch{}, nil
		}
		return schedule.Patch{}, fmt.Errorf("get session override: %w", err)
	}

	var p schedule.Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return schedule.Patch{}, fmt.Errorf("decode session override: %w", err)
	}
	return p, nil
}

func (r *ScheduleConfigRepository) UpsertSessionOverride(ctx context.Context, sessionID string, p schedule.Patch) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode session override: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO session_schedule_overrides (session_id, patch)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET
			patch      = EXCLUDED.patch,
			updated_at = NOW()`,
		sessionID, raw)
	if err != nil {
		return fmt.Errorf("upsert session override: %w", err)
	}
	return nil
}
