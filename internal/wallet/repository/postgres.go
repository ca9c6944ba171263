package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	privacydomain "github.com/soyaya/boardling-sub008/internal/privacy/domain"
	"github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

const (
	getWalletSQL = `SELECT w.id, w.project_id, p.user_id, w.address, w.address_kind, w.privacy_mode, w.is_active, w.created_at
FROM wallets w JOIN projects p ON p.id = w.project_id
WHERE w.id = $1`

	createWalletSQL = `INSERT INTO wallets (id, project_id, address, address_kind, privacy_mode, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	setPrivacyModeSQL = `UPDATE wallets SET privacy_mode = $2 WHERE id = $1`

	appendAuditSQL = `INSERT INTO privacy_audit_log (id, wallet_id, previous_mode, new_mode, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a wallet repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the wallet for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	var (
		w           domain.Wallet
		addressKind string
		mode        string
	)
	err := r.db.QueryRowContext(ctx, getWalletSQL, id).Scan(
		&w.ID, &w.ProjectID, &w.OwnerID, &w.Address, &addressKind, &mode, &w.IsActive, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.AddressKind = domain.AddressKind(addressKind)
	w.PrivacyMode = domain.PrivacyMode(mode)
	return &w, nil
}

// Create persists the wallet. The wallet must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, w *domain.Wallet) error {
	_, err := r.db.ExecContext(ctx, createWalletSQL,
		w.ID, w.ProjectID, w.Address, string(w.AddressKind), string(w.PrivacyMode), w.IsActive, w.CreatedAt,
	)
	return err
}

// UpdatePrivacyMode sets the wallet's privacy mode and appends its audit entry atomically.
// Returns ErrNotFound if the wallet row does not exist.
func (r *PostgresRepository) UpdatePrivacyMode(ctx context.Context, change privacydomain.ModeChange) error {
	return r.UpdatePrivacyModeBatch(ctx, []privacydomain.ModeChange{change})
}

// UpdatePrivacyModeBatch applies all changes in a single transaction. Any missing wallet or
// database error rolls back the whole batch.
func (r *PostgresRepository) UpdatePrivacyModeBatch(ctx context.Context, changes []privacydomain.ModeChange) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		res, err := tx.ExecContext(ctx, setPrivacyModeSQL, c.WalletID, string(c.Mode))
		if err != nil {
			return fmt.Errorf("set privacy mode %s: %w", c.WalletID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, c.WalletID)
		}
		if c.Audit == nil {
			continue
		}
		a := c.Audit
		if _, err := tx.ExecContext(ctx, appendAuditSQL,
			a.ID, a.WalletID, string(a.PreviousMode), string(a.NewMode), a.ActorID, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("append audit %s: %w", c.WalletID, err)
		}
	}
	return tx.Commit()
}
