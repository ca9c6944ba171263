package repository

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
)

// AuditRepository reads the append-only privacy audit log. Appends happen inside the
// wallet repository's mode-update transaction.
type AuditRepository interface {
	// ListByWallet returns at most limit entries for walletID, most recent first.
	ListByWallet(ctx context.Context, walletID string, limit int32) ([]*domain.AuditEntry, error)
}

// GrantRepository stores settled payments for monetizable wallets.
type GrantRepository interface {
	HasPaidAccess(ctx context.Context, walletID, requesterID string) (bool, error)
	// Create records the grant; recording the same wallet/requester pair twice is a no-op.
	Create(ctx context.Context, g *domain.AccessGrant) error
}
