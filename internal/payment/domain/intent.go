package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purpose says what a payment buys.
type Purpose string

const (
	PurposePremiumSubscription Purpose = "premium_subscription"
	PurposeWalletAccess        Purpose = "wallet_access"
)

// Status of an intent. Intents are created pending and become settled once the shielded transaction
// quoting their memo is observed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
)

// Intent is a request for the user to pay Amount. The payer quotes Memo in the shielded transaction
// so settlement can be matched to the intent. WalletID is set for wallet access payments and Months
// for premium subscriptions.
type Intent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Purpose   Purpose         `json:"purpose"`
	WalletID  string          `json:"wallet_id,omitempty"`
	Months    int             `json:"months,omitempty"`
	Memo      string          `json:"memo"`
	Status    Status          `json:"status"`
	TxRef     string          `json:"tx_ref,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// Expired reports whether the intent can no longer be paid at now.
func (in *Intent) Expired(now time.Time) bool {
	return !now.Before(in.ExpiresAt)
}
