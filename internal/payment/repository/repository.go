package repository

import (
	"context"
	"time"

	"github.com/soyaya/boardling-sub008/internal/payment/domain"
)

// Repository stores payment intents.
type Repository interface {
	Create(ctx context.Context, in *domain.Intent) error
	// GetByID returns the intent for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Intent, error)
	MarkSettled(ctx context.Context, id, txRef string, at time.Time) (bool, error)
	Reopen(ctx context.Context, id string) error
}

var _ Repository = (*PostgresRepository)(nil)
