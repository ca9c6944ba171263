package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soyaya/boardling-sub008/internal/payment/domain"
)

const (
	createIntentSQL = `INSERT INTO payment_intents (id, user_id, amount, currency, purpose, wallet_id, months, memo, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getIntentSQL = `SELECT id, user_id, amount::text, currency, purpose, COALESCE(wallet_id, ''), months, memo, status,
COALESCE(tx_ref, ''), created_at, expires_at, settled_at
FROM payment_intents
WHERE id = $1`

	settleIntentSQL = `UPDATE payment_intents SET status = 'settled', tx_ref = $2, settled_at = $3
WHERE id = $1 AND status = 'pending'`

	reopenIntentSQL = `UPDATE payment_intents SET status = 'pending', tx_ref = NULL, settled_at = NULL
WHERE id = $1 AND status = 'settled'`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a payment intent repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the intent. Amount is stored as NUMERIC via its decimal string.
func (r *PostgresRepository) Create(ctx context.Context, in *domain.Intent) error {
	_, err := r.db.ExecContext(ctx, createIntentSQL,
		in.ID, in.UserID, in.Amount.String(), in.Currency, string(in.Purpose), nullIfEmpty(in.WalletID), in.Months,
		in.Memo, string(in.Status), in.CreatedAt, in.ExpiresAt,
	)
	return err
}

// GetByID returns the intent for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Intent, error) {
	var (
		in              domain.Intent
		amount          string
		purpose, status string
		settledAt       sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getIntentSQL, id).Scan(
		&in.ID, &in.UserID, &amount, &in.Currency, &purpose, &in.WalletID, &in.Months, &in.Memo, &status,
		&in.TxRef, &in.CreatedAt, &in.ExpiresAt, &settledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if in.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("intent %s amount %q: %w", id, amount, err)
	}
	in.Purpose = domain.Purpose(purpose)
	in.Status = domain.Status(status)
	if settledAt.Valid {
		t := settledAt.Time
		in.SettledAt = &t
	}
	return &in, nil
}

// MarkSettled moves a pending intent to settled. It reports false when the intent was not pending,
// so concurrent settlements of the same intent apply once.
func (r *PostgresRepository) MarkSettled(ctx context.Context, id, txRef string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, settleIntentSQL, id, txRef, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Reopen moves a settled intent back to pending. Unknown or pending intents are left alone.
func (r *PostgresRepository) Reopen(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, reopenIntentSQL, id)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
