package repository

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/project/domain"
)

// Repository defines persistence for projects.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Project, error)
	CreateIfAbsent(ctx context.Context, p *domain.Project) (bool, error)
}
