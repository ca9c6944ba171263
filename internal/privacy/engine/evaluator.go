package engine

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// AccessInput is the fact set an access decision is made from.
type AccessInput struct {
	WalletID    string
	PrivacyMode walletdomain.PrivacyMode
	RequesterID string
	IsOwner     bool
	HasPaid     bool
}

// Evaluator evaluates the wallet access decision table using OPA or other engines.
type Evaluator interface {
	// EvaluateAccess returns the decision for in. On failure it returns a denied decision
	// together with the error so callers can fail closed.
	EvaluateAccess(ctx context.Context, in AccessInput) (domain.AccessDecision, error)
}
