package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmailNotFound   = errors.New("email not found")
	ErrSendJobNotFound = errors.New("send job not found")
	ErrConfigNotFound  = errors.New("schedule config not found")
	ErrTaskNotFound    = errors.New("trigger task not found")
)

// ValidationError reports a single bad schedule-config field. These are
// user-correctable and surfaced to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PreconditionError means the requested operation has nothing valid to act
// on: no eligible emails, nothing scheduled to pause, a recipient without a
// connected delivery identity, and so on.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// DispatchError wraps a failure from the external delayed-task service.
type DispatchError struct {
	Op    string // "submit" or "cancel"
	JobID string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// TransitionError is returned when a status change is not in the
// transition table.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}
