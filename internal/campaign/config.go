package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/schedule"
)

// EffectiveConfig resolves the sending policy for a session: the
// organization config (created lazily with defaults on first access) with
// the session's partial override merged on top.
func (c *Controller) EffectiveConfig(ctx context.Context, session *domain.Session) (schedule.Config, error) {
	cfg, err := c.organizationConfig(ctx, session.OrganizationID, true)
	if err != nil {
		return schedule.Config{}, err
	}

	patch, err := c.configs.GetSessionOverride(ctx, session.ID)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("get session override: %w", err)
	}
	return cfg.Apply(patch), nil
}

// UpdateOrganizationConfig applies a validated partial update to the
// organization's policy. When reschedule is set, every still-scheduled job
// across the organization is recomputed under the new policy.
func (c *Controller) UpdateOrganizationConfig(ctx context.Context, orgID string, patch schedule.Patch, reschedule bool) (schedule.Config, error) {
	ctx = withOperationID(ctx)

	base, err := c.organizationConfig(ctx, orgID, false)
	if err != nil {
		return schedule.Config{}, err
	}

	merged := base.Apply(patch)
	if err := merged.Validate(); err != nil {
		return schedule.Config{}, err
	}
	if err := c.configs.UpsertOrganization(ctx, orgID, merged); err != nil {
		return schedule.Config{}, fmt.Errorf("store organization config: %w", err)
	}

	c.logger.InfoContext(ctx, "organization config updated", "organization_id", orgID, "reschedule", reschedule)

	if reschedule {
		if _, err := c.RescheduleOrganization(ctx, orgID); err != nil {
			return merged, fmt.Errorf("reschedule organization: %w", err)
		}
	}
	return merged, nil
}

// UpdateSessionOverride stores a campaign-level partial override after
// validating the merged result against the organization config.
func (c *Controller) UpdateSessionOverride(ctx context.Context, sessionID string, patch schedule.Patch) (schedule.Config, error) {
	ctx = withOperationID(ctx)

	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("get session: %w", err)
	}

	base, err := c.organizationConfig(ctx, session.OrganizationID, false)
	if err != nil {
		return schedule.Config{}, err
	}

	merged := base.Apply(patch)
	if err := merged.Validate(); err != nil {
		return schedule.Config{}, err
	}
	if err := c.configs.UpsertSessionOverride(ctx, sessionID, patch); err != nil {
		return schedule.Config{}, fmt.Errorf("store session override: %w", err)
	}
	return merged, nil
}

// organizationConfig fetches the stored policy, falling back to defaults
// when none exists. persistDefault controls whether the lazy default is
// written back — reads persist it, update paths merge onto it in memory.
func (c *Controller) organizationConfig(ctx context.Context, orgID string, persistDefault bool) (schedule.Config, error) {
	cfg, err := c.configs.GetOrganization(ctx, orgID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return schedule.Config{}, fmt.Errorf("get organization config: %w", err)
	}

	cfg = schedule.Default()
	if persistDefault {
		if err := c.configs.UpsertOrganization(ctx, orgID, cfg); err != nil {
			return schedule.Config{}, fmt.Errorf("store default config: %w", err)
		}
	}
	return cfg, nil
}
