package service

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soyaya/boardling-sub008/internal/entitlement/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
)

const (
	DefaultTrialDays = 30
	Currency         = "ZEC"
	day              = 24 * time.Hour
)

// DefaultBaseMonthlyPrice is the premium price per month in ZEC.
var DefaultBaseMonthlyPrice = decimal.RequireFromString("0.1")

// DefaultWalletAccessPrice is what a non-owner pays in ZEC to read one monetizable wallet.
var DefaultWalletAccessPrice = decimal.RequireFromString("0.01")

// discounts maps each allowed subscription length in months to its discount fraction.
var discounts = map[int]decimal.Decimal{
	1:  decimal.Zero,
	3:  decimal.RequireFromString("0.05"),
	6:  decimal.RequireFromString("0.10"),
	12: decimal.RequireFromString("0.20"),
}

// GateConfig holds trial length and pricing.
type GateConfig struct {
	TrialDays        int
	BaseMonthlyPrice decimal.Decimal
	// WalletAccessPrice defaults to DefaultWalletAccessPrice when zero.
	WalletAccessPrice decimal.Decimal
}

// Gate holds the entitlement rules. All methods are pure functions of their arguments.
type Gate struct {
	trialDays int
	base      decimal.Decimal
	access    decimal.Decimal
}

// NewGate validates cfg and returns a Gate.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.TrialDays <= 0 {
		return nil, errors.New("trial days must be positive")
	}
	if !cfg.BaseMonthlyPrice.IsPositive() {
		return nil, errors.New("base monthly price must be positive")
	}
	access := cfg.WalletAccessPrice
	if access.IsZero() {
		access = DefaultWalletAccessPrice
	}
	if !access.IsPositive() {
		return nil, errors.New("wallet access price must be positive")
	}
	return &Gate{trialDays: cfg.TrialDays, base: cfg.BaseMonthlyPrice, access: access}, nil
}

// NewEntitlement returns the entitlement created for a new account: free with a trial from now.
func (g *Gate) NewEntitlement(userID string, now time.Time) domain.Entitlement {
	now = now.UTC()
	return domain.Entitlement{
		UserID:         userID,
		Status:         domain.StatusFree,
		TrialExpiresAt: now.Add(time.Duration(g.trialDays) * day),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ComputeStatus evaluates e at now. A paid subscription whose end has passed is reported as an expired
// free entitlement; the old trial is not renewed.
func (g *Gate) ComputeStatus(e domain.Entitlement, now time.Time) domain.State {
	st := domain.State{Cancelled: e.CancelledAt != nil}
	if e.Status != domain.StatusFree {
		if e.SubscriptionExpiresAt == nil {
			st.IsActive, st.IsPremium, st.Effective = true, true, e.Status
			return st
		}
		if now.Before(*e.SubscriptionExpiresAt) {
			st.IsActive, st.IsPremium, st.Effective = true, true, e.Status
			st.DaysRemaining = daysUntil(*e.SubscriptionExpiresAt, now)
			return st
		}
		st.IsExpired, st.Effective = true, domain.StatusFree
		return st
	}
	st.Effective = domain.StatusFree
	st.IsExpired = !now.Before(e.TrialExpiresAt)
	st.IsActive = !st.IsExpired
	st.DaysRemaining = daysUntil(e.TrialExpiresAt, now)
	return st
}

// Price returns the charge for a subscription of months. Only 1, 3, 6 and 12 months are sold.
func (g *Gate) Price(months int) (domain.Charge, error) {
	discount, ok := discounts[months]
	if !ok {
		return domain.Charge{}, apperr.Validation("duration must be 1, 3, 6 or 12 months; got %d", months)
	}
	amount := g.base.Mul(decimal.NewFromInt(int64(months))).Mul(decimal.NewFromInt(1).Sub(discount))
	return domain.Charge{
		Months:      months,
		BaseMonthly: g.base,
		Discount:    discount,
		Amount:      amount,
		Currency:    Currency,
	}, nil
}

// WalletAccessPrice is the one-off charge for reading a monetizable wallet one does not own.
func (g *Gate) WalletAccessPrice() decimal.Decimal {
	return g.access
}

// Upgrade moves e to premium for months starting at now and returns the charge. Enterprise
// entitlements are contract-managed and cannot be upgraded here.
func (g *Gate) Upgrade(e domain.Entitlement, months int, now time.Time) (domain.Entitlement, domain.Charge, error) {
	charge, err := g.Price(months)
	if err != nil {
		return e, domain.Charge{}, err
	}
	if e.Status == domain.StatusEnterprise {
		return e, domain.Charge{}, apperr.Validation("enterprise entitlements are managed by contract")
	}
	now = now.UTC()
	expires := now.AddDate(0, months, 0)
	e.Status = domain.StatusPremium
	e.SubscriptionExpiresAt = &expires
	e.CancelledAt = nil
	e.UpdatedAt = now
	return e, charge, nil
}

// Cancel marks a current paid subscription as non-renewing. Access stays premium until the
// subscription ends. Cancelling twice keeps the first cancellation time.
func (g *Gate) Cancel(e domain.Entitlement, now time.Time) (domain.Entitlement, error) {
	st := g.ComputeStatus(e, now)
	if !st.IsPremium {
		return e, apperr.Validation("no active subscription to cancel")
	}
	if e.CancelledAt != nil {
		return e, nil
	}
	now = now.UTC()
	e.CancelledAt = &now
	e.UpdatedAt = now
	return e, nil
}

// RequireActive passes while the trial or a subscription is running.
func (g *Gate) RequireActive(e domain.Entitlement, now time.Time) domain.Check {
	if g.ComputeStatus(e, now).IsActive {
		return domain.Check{Passed: true}
	}
	if e.Status != domain.StatusFree {
		return domain.Check{Reason: "subscription has expired"}
	}
	return domain.Check{Reason: "free trial has expired"}
}

// RequirePremium passes only for a running premium or enterprise subscription.
func (g *Gate) RequirePremium(e domain.Entitlement, now time.Time) domain.Check {
	st := g.ComputeStatus(e, now)
	switch {
	case st.IsPremium:
		return domain.Check{Passed: true}
	case e.Status != domain.StatusFree:
		return domain.Check{Reason: "premium subscription has expired"}
	default:
		return domain.Check{Reason: "premium subscription required"}
	}
}

func daysUntil(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(day)))
}
