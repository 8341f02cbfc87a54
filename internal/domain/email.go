package domain

import (
	"time"
)

// SendStatus tracks where an email is in its delivery lifecycle. The empty
// string is treated as pending: emails start with no send state at all.
type SendStatus string

const (
	SendStatusPending   SendStatus = "pending"
	SendStatusScheduled SendStatus = "scheduled"
	SendStatusPaused    SendStatus = "paused"
	SendStatusFailed    SendStatus = "failed"
	SendStatusCancelled SendStatus = "cancelled"
	SendStatusSent      SendStatus = "sent"
)

// sendTransitions is the authoritative transition table. "sent" is terminal.
var sendTransitions = map[SendStatus][]SendStatus{
	SendStatusPending:   {SendStatusScheduled, SendStatusCancelled},
	SendStatusScheduled: {SendStatusPaused, SendStatusSent, SendStatusFailed, SendStatusCancelled},
	SendStatusPaused:    {SendStatusPending, SendStatusScheduled, SendStatusCancelled},
	SendStatusFailed:    {SendStatusPending, SendStatusScheduled, SendStatusCancelled},
	SendStatusCancelled: {SendStatusPending, SendStatusScheduled},
	SendStatusSent:      {},
}

func (s SendStatus) normalized() SendStatus {
	if s == "" {
		return SendStatusPending
	}
	return s
}

// CanTransition reports whether s -> to is in the transition table.
func (s SendStatus) CanTransition(to SendStatus) bool {
	for _, next := range sendTransitions[s.normalized()] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the change and returns the new status.
func (s SendStatus) Transition(to SendStatus) (SendStatus, error) {
	if !s.CanTransition(to) {
		return s, &TransitionError{Entity: "email", From: string(s.normalized()), To: string(to)}
	}
	return to, nil
}

// Email is the subset of the generated-email entity that send scheduling
// cares about. Content generation and review happen elsewhere.
type Email struct {
	ID             string
	SessionID      string
	OrganizationID string

	RecipientName  string
	RecipientEmail string
	Subject        string
	Body           string

	// SenderID is the staff member whose delivery credential this email
	// goes out under. Nil means no sender has been assigned yet.
	SenderID *string

	SendStatus        SendStatus
	ScheduledSendTime *time.Time
	SendJobID         *string
	IsSent            bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schedulable reports whether the email may enter a new scheduling pass.
// IsSent is checked independently of SendStatus: a sent email with a stale
// status field must never be rescheduled.
func (e *Email) Schedulable() bool {
	if e.IsSent {
		return false
	}
	switch e.SendStatus.normalized() {
	case SendStatusPending, SendStatusPaused, SendStatusFailed, SendStatusCancelled:
		return true
	}
	return false
}

// Session is one email-generation campaign: a batch of donor emails drafted
// together and scheduled together.
type Session struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
