package service

import (
	"context"
	"errors"
	"log"

	entdomain "github.com/soyaya/boardling-sub008/internal/entitlement/domain"
	paymentdomain "github.com/soyaya/boardling-sub008/internal/payment/domain"
	paymentservice "github.com/soyaya/boardling-sub008/internal/payment/service"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	privacydomain "github.com/soyaya/boardling-sub008/internal/privacy/domain"
)

// IntentSettler settles payment intents.
type IntentSettler interface {
	Settle(ctx context.Context, intentID, txRef string) (*paymentdomain.Intent, error)
	Reopen(ctx context.Context, intentID string) error
}

// AccessGrants records paid wallet access.
type AccessGrants interface {
	RecordPaidAccess(ctx context.Context, walletID, requesterID, paymentRef string) (*privacydomain.AccessGrant, error)
}

// Subscriptions applies paid premium months.
type Subscriptions interface {
	EnsureEntitlement(ctx context.Context, userID string) (*entdomain.Entitlement, error)
	Upgrade(ctx context.Context, userID string, months int) (*entdomain.Entitlement, entdomain.Charge, error)
}

// Settlement applies what a settled payment bought. It is the only path that records wallet access
// grants and premium upgrades.
type Settlement struct {
	payments      IntentSettler
	grants        AccessGrants
	subscriptions Subscriptions
}

// NewSettlement returns a Settlement.
func NewSettlement(payments IntentSettler, grants AccessGrants, subscriptions Subscriptions) *Settlement {
	return &Settlement{payments: payments, grants: grants, subscriptions: subscriptions}
}

// Settle marks intentID paid by txRef and applies it for the user and wallet stored on the intent.
// A repeated settlement of an applied intent is a no-op. If applying fails the intent is reopened so
// the settlement can be delivered again.
func (s *Settlement) Settle(ctx context.Context, intentID, txRef string) (*paymentdomain.Intent, error) {
	in, err := s.payments.Settle(ctx, intentID, txRef)
	if errors.Is(err, paymentservice.ErrAlreadySettled) {
		log.Printf("settlement: intent %s already settled", intentID)
		return in, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, in); err != nil {
		if rerr := s.payments.Reopen(ctx, in.ID); rerr != nil {
			log.Printf("settlement: reopen intent %s: %v", in.ID, rerr)
		}
		return nil, err
	}
	return in, nil
}

func (s *Settlement) apply(ctx context.Context, in *paymentdomain.Intent) error {
	switch in.Purpose {
	case paymentdomain.PurposeWalletAccess:
		_, err := s.grants.RecordPaidAccess(ctx, in.WalletID, in.UserID, in.ID)
		return err
	case paymentdomain.PurposePremiumSubscription:
		if _, err := s.subscriptions.EnsureEntitlement(ctx, in.UserID); err != nil {
			return err
		}
		_, _, err := s.subscriptions.Upgrade(ctx, in.UserID, in.Months)
		return err
	default:
		return apperr.Validation("payment intent %s has unknown purpose %q", in.ID, in.Purpose)
	}
}
