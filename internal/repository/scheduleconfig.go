package repository

import (
	"context"

	"github.com/givelift/send-scheduler/internal/schedule"
)

type ScheduleConfigRepository interface {
	// GetOrganization returns domain.ErrConfigNotFound when the org has no
	// stored policy yet; the caller creates the default lazily.
	GetOrganization(ctx context.Context, orgID string) (schedule.Config, error)
	UpsertOrganization(ctx context.Context, orgID string, cfg schedule.Config) error

	// GetSessionOverride returns the campaign-level partial override, or a
	// zero patch when the session has none.
	GetSessionOverride(ctx context.Context, sessionID string) (schedule.Patch, error)
	UpsertSessionOverride(ctx context.Context, sessionID string, p schedule.Patch) error
}
