package domain_test

import (
	"errors"
	"testing"

	"github.com/givelift/send-scheduler/internal/domain"
)

func TestSendStatusTransitions(t *testing.T) {
	cases := []struct {
		from domain.SendStatus
		to   domain.SendStatus
		ok   bool
	}{
		{domain.SendStatusPending, domain.SendStatusScheduled, true},
		{domain.SendStatusPending, domain.SendStatusCancelled, true},
		{domain.SendStatusPending, domain.SendStatusSent, false},
		{domain.SendStatusScheduled, domain.SendStatusSent, true},
		{domain.SendStatusScheduled, domain.SendStatusPaused, true},
		{domain.SendStatusPaused, domain.SendStatusPending, true},
		{domain.SendStatusFailed, domain.SendStatusScheduled, true},
		{domain.SendStatusCancelled, domain.SendStatusPending, true},
		{domain.SendStatusSent, domain.SendStatusPending, false},
		{domain.SendStatusSent, domain.SendStatusCancelled, false},
		// Empty status behaves like pending.
		{"", domain.SendStatusScheduled, true},
		{"", domain.SendStatusPaused, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%q -> %q = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestSendStatusTransition_ReturnsTransitionError(t *testing.T) {
	_, err := domain.SendStatusSent.Transition(domain.SendStatusPending)
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("want TransitionError, got %v", err)
	}
	if terr.From != "sent" || terr.To != "pending" {
		t.Errorf("error = %v, want sent -> pending", terr)
	}
}

func TestJobStatusTerminalStates(t *testing.T) {
	for _, terminal := range []domain.JobStatus{domain.JobCompleted, domain.JobCancelled, domain.JobFailed} {
		for _, to := range []domain.JobStatus{domain.JobScheduled, domain.JobCompleted, domain.JobCancelled, domain.JobFailed} {
			if terminal.CanTransition(to) {
				t.Errorf("%q is terminal but allows transition to %q", terminal, to)
			}
		}
	}
	if !domain.JobScheduled.CanTransition(domain.JobCompleted) {
		t.Error("scheduled -> completed must be allowed")
	}
}

func TestEmailSchedulable(t *testing.T) {
	cases := []struct {
		name  string
		email domain.Email
		want  bool
	}{
		{"pending", domain.Email{SendStatus: domain.SendStatusPending}, true},
		{"empty status counts as pending", domain.Email{}, true},
		{"paused", domain.Email{SendStatus: domain.SendStatusPaused}, true},
		{"failed", domain.Email{SendStatus: domain.SendStatusFailed}, true},
		{"cancelled", domain.Email{SendStatus: domain.SendStatusCancelled}, true},
		{"already scheduled", domain.Email{SendStatus: domain.SendStatusScheduled}, false},
		{"sent", domain.Email{SendStatus: domain.SendStatusSent, IsSent: true}, false},
		// The sent flag wins even when the status field is stale.
		{"sent with stale pending status", domain.Email{SendStatus: domain.SendStatusPending, IsSent: true}, false},
		{"sent with empty status", domain.Email{IsSent: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.email.Schedulable(); got != tc.want {
				t.Errorf("Schedulable() = %v, want %v", got, tc.want)
			}
		})
	}
}
