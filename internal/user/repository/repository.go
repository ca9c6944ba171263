package repository

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// CreateIfAbsent inserts u unless a user with the same id exists. Reports whether a row was written.
	CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error)
}
