package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/soyaya/boardling-sub008/internal/entitlement/domain"
)

const (
	getEntitlementSQL = `SELECT user_id, status, trial_expires_at, subscription_expires_at, cancelled_at, created_at, updated_at
FROM entitlements WHERE user_id = $1`

	createEntitlementSQL = `INSERT INTO entitlements (user_id, status, trial_expires_at, subscription_expires_at, cancelled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO NOTHING`

	saveEntitlementSQL = `INSERT INTO entitlements (user_id, status, trial_expires_at, subscription_expires_at, cancelled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	status = EXCLUDED.status,
	subscription_expires_at = EXCLUDED.subscription_expires_at,
	cancelled_at = EXCLUDED.cancelled_at,
	updated_at = EXCLUDED.updated_at`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an entitlement repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Entitlement, error) {
	var (
		e         domain.Entitlement
		status    string
		subExp    sql.NullTime
		cancelled sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getEntitlementSQL, userID).Scan(
		&e.UserID, &status, &e.TrialExpiresAt, &subExp, &cancelled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Status = domain.Status(status)
	if subExp.Valid {
		t := subExp.Time
		e.SubscriptionExpiresAt = &t
	}
	if cancelled.Valid {
		t := cancelled.Time
		e.CancelledAt = &t
	}
	return &e, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error) {
	res, err := r.db.ExecContext(ctx, createEntitlementSQL, args(e)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save upserts e. The trial window and creation time of an existing row are never changed.
func (r *PostgresRepository) Save(ctx context.Context, e *domain.Entitlement) error {
	_, err := r.db.ExecContext(ctx, saveEntitlementSQL, args(e)...)
	return err
}

func args(e *domain.Entitlement) []any {
	return []any{
		e.UserID, string(e.Status), e.TrialExpiresAt,
		nullTime(e.SubscriptionExpiresAt), nullTime(e.CancelledAt),
		e.CreatedAt, e.UpdatedAt,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
