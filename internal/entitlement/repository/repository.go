package repository

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/entitlement/domain"
)

// Repository persists one entitlement row per user.
type Repository interface {
	// GetByUserID returns the entitlement, or nil if the user has none.
	GetByUserID(ctx context.Context, userID string) (*domain.Entitlement, error)
	// CreateIfAbsent inserts e unless the user already has an entitlement. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error)
	// Save writes every mutable field of e in one statement.
	Save(ctx context.Context, e *domain.Entitlement) error
}
