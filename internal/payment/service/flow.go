// Package service starts and settles payment flows. It records what a user owes and for what; the
// effect of a payment is applied by the caller once Settle succeeds.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soyaya/boardling-sub008/internal/payment/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	"github.com/soyaya/boardling-sub008/internal/telemetry"
	telemetrydomain "github.com/soyaya/boardling-sub008/internal/telemetry/domain"
)

const (
	Currency = "ZEC"
	// IntentTTL is how long a pending intent stays payable.
	IntentTTL  = time.Hour
	memoPrefix = "boardling:"
)

// ErrAlreadySettled is returned by Settle for an intent that has already been settled.
var ErrAlreadySettled = errors.New("payment intent already settled")

// IntentRepo is the minimal intent store needed by Flow.
type IntentRepo interface {
	Create(ctx context.Context, in *domain.Intent) error
	GetByID(ctx context.Context, id string) (*domain.Intent, error)
	MarkSettled(ctx context.Context, id, txRef string, at time.Time) (bool, error)
	Reopen(ctx context.Context, id string) error
}

// Request describes a payment to start.
type Request struct {
	UserID  string
	Amount  decimal.Decimal
	Purpose domain.Purpose
	// WalletID is the wallet a wallet access payment unlocks.
	WalletID string
	// Months is the subscription length a premium payment buys.
	Months int
}

func (r Request) validate() error {
	if r.UserID == "" {
		return apperr.Validation("user_id is required")
	}
	if !r.Amount.IsPositive() {
		return apperr.Validation("amount must be positive; got %s", r.Amount)
	}
	switch r.Purpose {
	case domain.PurposePremiumSubscription:
		if r.Months <= 0 {
			return apperr.Validation("premium payments need a positive number of months; got %d", r.Months)
		}
	case domain.PurposeWalletAccess:
		if strings.TrimSpace(r.WalletID) == "" {
			return apperr.Validation("wallet access payments need a wallet_id")
		}
	default:
		return apperr.Validation("unknown payment purpose %q", r.Purpose)
	}
	return nil
}

// Flow creates and settles payment intents.
type Flow struct {
	repo   IntentRepo
	events telemetry.EventEmitter
	now    func() time.Time
}

// NewFlow returns a Flow. events may be nil.
func NewFlow(repo IntentRepo, events telemetry.EventEmitter) *Flow {
	return &Flow{repo: repo, events: events, now: func() time.Time { return time.Now().UTC() }}
}

// InitiatePaymentFlow records a pending intent for req.UserID to pay req.Amount ZEC. Nothing is granted
// until the intent is settled.
func (f *Flow) InitiatePaymentFlow(ctx context.Context, req Request) (*domain.Intent, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := f.now()
	id := uuid.New().String()
	in := &domain.Intent{
		ID:        id,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  Currency,
		Purpose:   req.Purpose,
		Memo:      memoPrefix + id,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(IntentTTL),
	}
	switch req.Purpose {
	case domain.PurposeWalletAccess:
		in.WalletID = strings.TrimSpace(req.WalletID)
	case domain.PurposePremiumSubscription:
		in.Months = req.Months
	}
	if err := f.repo.Create(ctx, in); err != nil {
		return nil, apperr.Internal("create payment intent", err)
	}
	meta := map[string]string{
		"intent_id": id,
		"amount":    req.Amount.String(),
		"purpose":   string(req.Purpose),
	}
	telemetry.EmitAsync(f.events, ctx, &telemetrydomain.Event{
		Type:      telemetrydomain.EventPaymentInitiated,
		Source:    "payment",
		WalletID:  in.WalletID,
		UserID:    req.UserID,
		Metadata:  meta,
		CreatedAt: now,
	})
	return in, nil
}

// Settle marks a pending intent as paid by the shielded transaction txRef and returns it. A settled
// intent returns ErrAlreadySettled with the stored intent; an expired one is rejected.
func (f *Flow) Settle(ctx context.Context, intentID, txRef string) (*domain.Intent, error) {
	intentID, txRef = strings.TrimSpace(intentID), strings.TrimSpace(txRef)
	if intentID == "" || txRef == "" {
		return nil, apperr.Validation("intent_id and tx_ref are required")
	}
	in, err := f.repo.GetByID(ctx, intentID)
	if err != nil {
		return nil, apperr.Internal("load payment intent", err)
	}
	if in == nil {
		return nil, apperr.NotFound("payment intent %s not found", intentID)
	}
	if in.Status == domain.StatusSettled {
		return in, ErrAlreadySettled
	}
	now := f.now()
	if in.Expired(now) {
		return nil, apperr.Validation("payment intent %s expired at %s", intentID, in.ExpiresAt.Format(time.RFC3339))
	}
	ok, err := f.repo.MarkSettled(ctx, in.ID, txRef, now)
	if err != nil {
		return nil, apperr.Internal("settle payment intent", err)
	}
	if !ok {
		return in, ErrAlreadySettled
	}
	in.Status = domain.StatusSettled
	in.TxRef = txRef
	in.SettledAt = &now
	telemetry.EmitAsync(f.events, ctx, &telemetrydomain.Event{
		Type:     telemetrydomain.EventPaymentSettled,
		Source:   "payment",
		WalletID: in.WalletID,
		UserID:   in.UserID,
		Metadata: map[string]string{
			"intent_id": in.ID,
			"tx_ref":    txRef,
			"purpose":   string(in.Purpose),
		},
		CreatedAt: now,
	})
	return in, nil
}

// Reopen returns a settled intent to pending so its settlement can be delivered again.
func (f *Flow) Reopen(ctx context.Context, intentID string) error {
	if err := f.repo.Reopen(ctx, intentID); err != nil {
		return apperr.Internal("reopen payment intent", err)
	}
	return nil
}
