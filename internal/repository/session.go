package repository

import (
	"context"

	"github.com/givelift/send-scheduler/internal/domain"
)

type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*domain.Session, error)
}
