package domain

import (
	"time"
)

// TaskStatus is the lifecycle of a delayed trigger task inside the runner.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
	TaskFailed    TaskStatus = "failed"
)

// TriggerTask is one delayed execution owned by the runner: fire at
// FireAt, deliver the referenced email, report back to the send job.
// Execution is at-least-once — consumers must tolerate a duplicate fire.
type TriggerTask struct {
	ID             string
	SendJobID      string
	EmailID        string
	SessionID      string
	OrganizationID string

	FireAt time.Time
	Status TaskStatus

	RetryCount int
	MaxRetries int

	ClaimedAt   *time.Time
	ClaimedBy   *string // worker ID
	HeartbeatAt *time.Time
	CompletedAt *time.Time
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
