package domain

import (
	"time"
)

// JobStatus is the lifecycle of one delegated send attempt.
type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobScheduled: {JobCompleted, JobCancelled, JobFailed},
	JobCompleted: {},
	JobCancelled: {},
	JobFailed:    {},
}

func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobStatus) Transition(to JobStatus) (JobStatus, error) {
	if !s.CanTransition(to) {
		return s, &TransitionError{Entity: "send job", From: string(s), To: string(to)}
	}
	return to, nil
}

// SendJob is the persisted record of one email handed to the delayed-task
// runner. One job exists per outstanding or historical send attempt.
type SendJob struct {
	ID             string
	EmailID        string
	SessionID      string
	OrganizationID string

	ScheduledTime time.Time
	Status        JobStatus

	// TriggerJobID is the external runner's id for this job, recorded once
	// the submit call succeeds. Needed to cancel the task later.
	TriggerJobID *string

	// ActualSendTime is set when the runner reports completion. Daily-quota
	// bookkeeping counts these, not ScheduledTime.
	ActualSendTime *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
