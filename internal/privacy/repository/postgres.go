package repository

import (
	"context"
	"database/sql"

	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

const (
	listAuditSQL = `SELECT id, wallet_id, previous_mode, new_mode, actor_id, created_at
FROM privacy_audit_log
WHERE wallet_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	hasGrantSQL = `SELECT EXISTS (SELECT 1 FROM wallet_access_grants WHERE wallet_id = $1 AND requester_id = $2)`

	createGrantSQL = `INSERT INTO wallet_access_grants (id, wallet_id, requester_id, payment_ref, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (wallet_id, requester_id) DO NOTHING`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log and access grant repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByWallet returns the newest audit entries for walletID. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByWallet(ctx context.Context, walletID string, limit int32) ([]*domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, listAuditSQL, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		var (
			a          domain.AuditEntry
			prev, next string
		)
		if err := rows.Scan(&a.ID, &a.WalletID, &prev, &next, &a.ActorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.PreviousMode = walletdomain.PrivacyMode(prev)
		a.NewMode = walletdomain.PrivacyMode(next)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// HasPaidAccess reports whether requesterID has a recorded payment for walletID.
func (r *PostgresRepository) HasPaidAccess(ctx context.Context, walletID, requesterID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, hasGrantSQL, walletID, requesterID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Create persists the grant. The grant must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, g *domain.AccessGrant) error {
	_, err := r.db.ExecContext(ctx, createGrantSQL, g.ID, g.WalletID, g.RequesterID, g.PaymentRef, g.CreatedAt)
	return err
}
