// Package campaign is the stateful orchestration surface over a session's
// emails: schedule, pause, resume, cancel, and bulk rescheduling when an
// organization's sending policy changes.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/givelift/send-scheduler/internal/domain"
	"github.com/givelift/send-scheduler/internal/metrics"
	"github.com/givelift/send-scheduler/internal/opid"
	"github.com/givelift/send-scheduler/internal/repository"
	"github.com/givelift/send-scheduler/internal/schedule"
)

// JobDispatcher is what the controller needs from the dispatch layer.
// Satisfied by *dispatch.Dispatcher; faked in tests.
type JobDispatcher interface {
	Dispatch(ctx context.Context, assignments []schedule.Assignment) ([]*domain.SendJob, error)
	CancelJobs(ctx context.Context, jobs []*domain.SendJob) (cancelled, failed int)
}

type Controller struct {
	sessions   repository.SessionRepository
	emails     repository.EmailRepository
	jobs       repository.SendJobRepository
	configs    repository.ScheduleConfigRepository
	identity   repository.DeliveryIdentity
	dispatcher JobDispatcher
	logger     *slog.Logger

	now func() time.Time
	rng *rand.Rand
}

func NewController(
	sessions repository.SessionRepository,
	emails repository.EmailRepository,
	jobs repository.SendJobRepository,
	configs repository.ScheduleConfigRepository,
	identity repository.DeliveryIdentity,
	dispatcher JobDispatcher,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		sessions:   sessions,
		emails:     emails,
		jobs:       jobs,
		configs:    configs,
		identity:   identity,
		dispatcher: dispatcher,
		logger:     logger.With("component", "campaign"),
		now:        time.Now,
	}
}

// WithClock overrides the controller's notion of now. Test hook.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// WithRand pins the gap randomness. Test hook.
func (c *Controller) WithRand(rng *rand.Rand) *Controller {
	c.rng = rng
	return c
}

type ScheduleResult struct {
	Scheduled               int
	ScheduledForToday       int
	ScheduledForLater       int
	EstimatedCompletionTime *time.Time
}

// Schedule assigns a send time to every eligible email in the session and
// hands each one to the delayed-task runner.
//
// Eligibility is sendStatus in {pending, paused, failed, cancelled} and not
// sent. Emails already in scheduled state are excluded, which is what makes
// two concurrent Schedule calls on the same session safe without a lock:
// the second pass finds nothing left to claim.
func (c *Controller) Schedule(ctx context.Context, sessionID string) (*ScheduleResult, error) {
	ctx = withOperationID(ctx)

	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	cfg, err := c.EffectiveConfig(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all, err := c.emails.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}

	eligible := make([]*domain.Email, 0, len(all))
	for _, e := range all {
		if e.Schedulable() {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil, &domain.PreconditionError{Reason: "no emails are eligible for scheduling"}
	}

	// Fail closed before touching anything: every recipient needs an
	// assigned sender with a connected delivery credential.
	if err := c.verifyDeliveryIdentity(ctx, eligible); err != nil {
		return nil, err
	}

	now := c.now()
	sentToday, err := c.sentToday(ctx, session.OrganizationID, cfg, now)
	if err != nil {
		return nil, fmt.Errorf("count sent today: %w", err)
	}

	items := make([]schedule.Item, len(eligible))
	for i, e := range eligible {
		items[i] = schedule.Item{
			EmailID:        e.ID,
			SessionID:      e.SessionID,
			OrganizationID: e.OrganizationID,
		}
	}

	assignments := schedule.Plan(items, cfg, sentToday, now, c.rng)
	metrics.ScheduleBatchSize.Observe(float64(len(assignments)))

	jobs, err := c.dispatcher.Dispatch(ctx, assignments)
	if err != nil {
		return nil, fmt.Errorf("dispatch batch of %d: %w", len(assignments), err)
	}

	result := summarize(assignments, cfg, now)
	c.logger.InfoContext(ctx, "session scheduled",
		"session_id", sessionID,
		"scheduled", result.Scheduled,
		"today", result.ScheduledForToday,
		"later", result.ScheduledForLater,
		"jobs", len(jobs),
	)
	return result, nil
}

type PauseResult struct {
	Paused         int
	CancelFailures int
}

// Pause cancels every outstanding trigger task for the session and parks
// the affected emails. Individual cancel failures are tolerated: local
// state is always updated, since a stale task firing against a paused
// email is preferable to a blocked pause.
func (c *Controller) Pause(ctx context.Context, sessionID string) (*PauseResult, error) {
	ctx = withOperationID(ctx)

	if _, err := c.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	jobs, err := c.jobs.ListScheduledBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, &domain.PreconditionError{Reason: "no scheduled sends to pause"}
	}

	_, failed := c.dispatcher.CancelJobs(ctx, jobs)

	jobIDs := make([]string, len(jobs))
	emailIDs := make([]string, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
		emailIDs[i] = j.EmailID
	}
	if err := c.jobs.MarkCancelled(ctx, jobIDs); err != nil {
		return nil, fmt.Errorf("cancel send jobs: %w", err)
	}
	if err := c.emails.SetStatus(ctx, emailIDs, domain.SendStatusPaused); err != nil {
		return nil, fmt.Errorf("pause emails: %w", err)
	}

	c.logger.InfoContext(ctx, "session paused", "session_id", sessionID, "paused", len(jobs), "cancel_failures", failed)
	return &PauseResult{Paused: len(jobs), CancelFailures: failed}, nil
}

// Resume returns the session's paused emails to the pending pool and runs a
// fresh scheduling pass under the session's effective config.
func (c *Controller) Resume(ctx context.Context, sessionID string) (*ScheduleResult, error) {
	ctx = withOperationID(ctx)

	if _, err := c.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	all, err := c.emails.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}

	var pausedIDs []string
	for _, e := range all {
		if e.SendStatus == domain.SendStatusPaused && !e.IsSent {
			pausedIDs = append(pausedIDs, e.ID)
		}
	}
	if len(pausedIDs) == 0 {
		return nil, &domain.PreconditionError{Reason: "no paused emails to resume"}
	}

	if err := c.emails.ResetToPending(ctx, pausedIDs); err != nil {
		return nil, fmt.Errorf("reset emails to pending: %w", err)
	}

	return c.Schedule(ctx, sessionID)
}

type CancelResult struct {
	Cancelled int
}

// Cancel pauses the session best-effort, then marks every non-terminal
// email cancelled. Sent emails are never touched.
func (c *Controller) Cancel(ctx context.Context, sessionID string) (*CancelResult, error) {
	ctx = withOperationID(ctx)

	if _, err := c.Pause(ctx, sessionID); err != nil {
		var pre *domain.PreconditionError
		if !errors.As(err, &pre) {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, err
			}
			// Best-effort: a partial pause must not block the cancel.
			c.logger.WarnContext(ctx, "pause during cancel", "session_id", sessionID, "error", err)
		}
	}

	all, err := c.emails.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}

	var ids []string
	for _, e := range all {
		if e.IsSent {
			continue
		}
		switch e.SendStatus {
		case domain.SendStatusPaused, domain.SendStatusPending, domain.SendStatusScheduled, "":
			ids = append(ids, e.ID)
		}
	}
	if len(ids) > 0 {
		if err := c.emails.SetStatus(ctx, ids, domain.SendStatusCancelled); err != nil {
			return nil, fmt.Errorf("cancel emails: %w", err)
		}
	}

	c.logger.InfoContext(ctx, "session cancelled", "session_id", sessionID, "cancelled", len(ids))
	return &CancelResult{Cancelled: len(ids)}, nil
}

type RescheduleResult struct {
	Sessions       int
	FailedSessions int
	Emails         int
}

// RescheduleOrganization cancels every still-scheduled job across the
// organization and computes a fresh schedule per session under each
// session's effective config. Jobs not in scheduled state and emails
// already sent are never touched. Per-session failures are logged and do
// not stop the remaining sessions.
func (c *Controller) RescheduleOrganization(ctx context.Context, orgID string) (*RescheduleResult, error) {
	ctx = withOperationID(ctx)

	jobs, err := c.jobs.ListScheduledByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	if len(jobs) == 0 {
		return &RescheduleResult{}, nil
	}

	bySession := make(map[string][]*domain.SendJob)
	for _, j := range jobs {
		bySession[j.SessionID] = append(bySession[j.SessionID], j)
	}

	result := &RescheduleResult{}
	for sessionID, sessionJobs := range bySession {
		if err := c.rescheduleSession(ctx, sessionID, sessionJobs); err != nil {
			result.FailedSessions++
			c.logger.ErrorContext(ctx, "reschedule session", "session_id", sessionID, "error", err)
			continue
		}
		result.Sessions++
		result.Emails += len(sessionJobs)
	}
	return result, nil
}

func (c *Controller) rescheduleSession(ctx context.Context, sessionID string, jobs []*domain.SendJob) error {
	c.dispatcher.CancelJobs(ctx, jobs)

	jobIDs := make([]string, len(jobs))
	emailIDs := make([]string, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
		emailIDs[i] = j.EmailID
	}
	if err := c.jobs.MarkCancelled(ctx, jobIDs); err != nil {
		return fmt.Errorf("cancel send jobs: %w", err)
	}
	if err := c.emails.ResetToPending(ctx, emailIDs); err != nil {
		return fmt.Errorf("reset emails to pending: %w", err)
	}

	_, err := c.Schedule(ctx, sessionID)
	return err
}

// verifyDeliveryIdentity fails closed: the whole batch is rejected when any
// email lacks an assigned sender or its sender's credential is not
// connected. No partial scheduling of an invalid batch.
func (c *Controller) verifyDeliveryIdentity(ctx context.Context, emails []*domain.Email) error {
	senderIDs := make([]string, 0, len(emails))
	seen := make(map[string]bool)
	for _, e := range emails {
		if e.SenderID == nil || *e.SenderID == "" {
			return &domain.PreconditionError{Reason: fmt.Sprintf("email %s has no assigned sender", e.ID)}
		}
		if !seen[*e.SenderID] {
			seen[*e.SenderID] = true
			senderIDs = append(senderIDs, *e.SenderID)
		}
	}

	connected, err := c.identity.Connected(ctx, senderIDs)
	if err != nil {
		return fmt.Errorf("check delivery identity: %w", err)
	}
	for _, e := range emails {
		if !connected[*e.SenderID] {
			return &domain.PreconditionError{
				Reason: fmt.Sprintf("sender %s has no connected delivery credential", *e.SenderID),
			}
		}
	}
	return nil
}

// sentToday counts completed sends during the current civil day in the
// organization's quota timezone. Quota tracks actual sends, not scheduling
// instants.
func (c *Controller) sentToday(ctx context.Context, orgID string, cfg schedule.Config, now time.Time) (int, error) {
	ct, err := schedule.CivilTimeIn(now, cfg.Timezone)
	if err != nil {
		return 0, err
	}
	dayStart, err := schedule.InstantOf(schedule.CivilTime{Year: ct.Year, Month: ct.Month, Day: ct.Day}, cfg.Timezone)
	if err != nil {
		return 0, err
	}
	dayEnd, err := schedule.InstantOf(schedule.CivilTime{Year: ct.Year, Month: ct.Month, Day: ct.Day + 1}, cfg.Timezone)
	if err != nil {
		return 0, err
	}
	return c.jobs.CountSentBetween(ctx, orgID, dayStart, dayEnd)
}

func summarize(assignments []schedule.Assignment, cfg schedule.Config, now time.Time) *ScheduleResult {
	result := &ScheduleResult{Scheduled: len(assignments)}
	if len(assignments) == 0 {
		return result
	}

	nowCivil, err := schedule.CivilTimeIn(now, cfg.Timezone)
	for _, a := range assignments {
		if err == nil {
			c, cErr := schedule.CivilTimeIn(a.ScheduledTime, cfg.Timezone)
			if cErr == nil && c.Year == nowCivil.Year && c.Month == nowCivil.Month && c.Day == nowCivil.Day {
				result.ScheduledForToday++
				continue
			}
		}
		result.ScheduledForLater++
	}

	last := assignments[len(assignments)-1].ScheduledTime
	result.EstimatedCompletionTime = &last
	return result
}

// withOperationID stamps a fresh operation id unless the caller already
// attached one (Resume reuses the id of the pass that triggered it).
func withOperationID(ctx context.Context) context.Context {
	if opid.FromContext(ctx) != "" {
		return ctx
	}
	return opid.WithOperationID(ctx, opid.New())
}
