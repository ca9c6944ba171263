package repository

import (
	"context"
	"errors"

	privacydomain "github.com/soyaya/boardling-sub008/internal/privacy/domain"
	"github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// ErrNotFound is returned by updates that matched no wallet row.
var ErrNotFound = errors.New("wallet not found")

// Repository defines persistence for wallets and their privacy mode.
type Repository interface {
	// GetByID returns the wallet with its owner resolved, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Wallet, error)
	Create(ctx context.Context, w *domain.Wallet) error
	// UpdatePrivacyMode sets the mode and appends the audit entry in one transaction.
	UpdatePrivacyMode(ctx context.Context, change privacydomain.ModeChange) error
	// UpdatePrivacyModeBatch applies every change in one transaction; on any failure nothing is written.
	UpdatePrivacyModeBatch(ctx context.Context, changes []privacydomain.ModeChange) error
}
