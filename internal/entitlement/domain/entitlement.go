package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the subscription tier of a user.
type Status string

const (
	StatusFree       Status = "free"
	StatusPremium    Status = "premium"
	StatusEnterprise Status = "enterprise"
)

// Valid reports whether s is a known tier.
func (s Status) Valid() bool {
	switch s {
	case StatusFree, StatusPremium, StatusEnterprise:
		return true
	}
	return false
}

// Entitlement is a user's subscription state. It is created once per account with a free trial and
// changed only by upgrade and cancel.
type Entitlement struct {
	UserID         string
	Status         Status
	TrialExpiresAt time.Time
	// SubscriptionExpiresAt is nil for free users and for enterprise contracts without an end date.
	SubscriptionExpiresAt *time.Time
	// CancelledAt marks a subscription as non-renewing.
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscribed reports whether the stored status is a paid tier, regardless of expiry.
func (e *Entitlement) Subscribed() bool {
	return e != nil && e.Status != StatusFree
}

// State is the entitlement as seen at a point in time.
type State struct {
	// IsExpired is true when the free trial has ended or a paid subscription has lapsed.
	IsExpired     bool   `json:"is_expired"`
	IsActive      bool   `json:"is_active"`
	IsPremium     bool   `json:"is_premium"`
	DaysRemaining int    `json:"days_remaining"`
	Effective     Status `json:"effective_status"`
	Cancelled     bool   `json:"cancelled"`
}

// Check is the result of a pure entitlement predicate.
type Check struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Charge is the price of an upgrade.
type Charge struct {
	Months      int             `json:"months"`
	BaseMonthly decimal.Decimal `json:"base_monthly"`
	Discount    decimal.Decimal `json:"discount"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}
