package campaign

import (
	"errors"

	"github.com/givelift/send-scheduler/internal/domain"
)

// StatusCode classifies controller errors for the calling RPC layer.
type StatusCode string

const (
	StatusOK         StatusCode = "OK"
	StatusNotFound   StatusCode = "NOT_FOUND"
	StatusBadRequest StatusCode = "BAD_REQUEST"
	StatusInternal   StatusCode = "INTERNAL"
)

// Code maps an error from any controller operation onto the surfaced
// status. Validation and precondition failures are user-correctable;
// everything else is internal.
func Code(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrEmailNotFound) ||
		errors.Is(err, domain.ErrConfigNotFound) {
		return StatusNotFound
	}
	var validation *domain.ValidationError
	var precondition *domain.PreconditionError
	if errors.As(err, &validation) || errors.As(err, &precondition) {
		return StatusBadRequest
	}
	return StatusInternal
}
