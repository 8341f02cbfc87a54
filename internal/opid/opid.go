// Package opid threads an operation id through the context of one
// scheduling pass (schedule, pause, resume, reschedule) so every log line
// it produces can be correlated.
package opid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New generates a random UUID v4 operation ID.
func New() string {
	return uuid.NewString()
}

// WithOperationID returns a copy of ctx with the operation ID attached.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the operation ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
