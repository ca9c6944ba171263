package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soyaya/boardling-sub008/internal/entitlement/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(GateConfig{TrialDays: DefaultTrialDays, BaseMonthlyPrice: DefaultBaseMonthlyPrice})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func TestNewGate_Validation(t *testing.T) {
	if _, err := NewGate(GateConfig{TrialDays: 0, BaseMonthlyPrice: DefaultBaseMonthlyPrice}); err == nil {
		t.Error("expected error for zero trial days")
	}
	if _, err := NewGate(GateConfig{TrialDays: 30, BaseMonthlyPrice: decimal.Zero}); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := NewGate(GateConfig{TrialDays: 30, BaseMonthlyPrice: DefaultBaseMonthlyPrice, WalletAccessPrice: decimal.NewFromInt(-1)}); err == nil {
		t.Error("expected error for negative wallet access price")
	}
}

func TestWalletAccessPrice(t *testing.T) {
	if got := newTestGate(t).WalletAccessPrice(); !got.Equal(DefaultWalletAccessPrice) {
		t.Errorf("default wallet access price = %s", got)
	}
	g, err := NewGate(GateConfig{TrialDays: 30, BaseMonthlyPrice: DefaultBaseMonthlyPrice, WalletAccessPrice: decimal.RequireFromString("0.05")})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if got := g.WalletAccessPrice(); !got.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("wallet access price = %s", got)
	}
}

func TestNewEntitlement_TrialStatus(t *testing.T) {
	g := newTestGate(t)
	e := g.NewEntitlement("u1", t0)
	if e.Status != domain.StatusFree || !e.TrialExpiresAt.Equal(t0.AddDate(0, 0, 30)) {
		t.Fatalf("entitlement = %+v", e)
	}
	st := g.ComputeStatus(e, t0)
	if st.DaysRemaining != 30 || st.IsPremium || st.IsExpired || !st.IsActive {
		t.Errorf("state = %+v", st)
	}
	if st.Effective != domain.StatusFree {
		t.Errorf("effective = %s", st.Effective)
	}
}

func TestComputeStatus_TrialEdges(t *testing.T) {
	g := newTestGate(t)
	e := g.NewEntitlement("u1", t0)

	st := g.ComputeStatus(e, t0.Add(29*day+time.Hour))
	if st.DaysRemaining != 1 || st.IsExpired {
		t.Errorf("last day: %+v", st)
	}
	st = g.ComputeStatus(e, e.TrialExpiresAt)
	if !st.IsExpired || st.IsActive || st.DaysRemaining != 0 {
		t.Errorf("at expiry: %+v", st)
	}
	st = g.ComputeStatus(e, e.TrialExpiresAt.Add(90*day))
	if st.DaysRemaining != 0 {
		t.Errorf("days remaining must not go negative: %+v", st)
	}
}

func TestComputeStatus_EnterpriseWithoutEnd(t *testing.T) {
	g := newTestGate(t)
	e := g.NewEntitlement("u1", t0)
	e.Status = domain.StatusEnterprise
	st := g.ComputeStatus(e, t0.AddDate(5, 0, 0))
	if !st.IsPremium || !st.IsActive || st.IsExpired || st.Effective != domain.StatusEnterprise {
		t.Errorf("state = %+v", st)
	}
}

func TestPrice_DiscountTiers(t *testing.T) {
	g := newTestGate(t)
	cases := map[int]string{1: "0.1", 3: "0.285", 6: "0.54", 12: "0.96"}
	for months, want := range cases {
		c, err := g.Price(months)
		if err != nil {
			t.Fatalf("Price(%d): %v", months, err)
		}
		if !c.Amount.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Price(%d) = %s, want %s", months, c.Amount, want)
		}
		if c.Currency != Currency {
			t.Errorf("currency = %s", c.Currency)
		}
	}
	for _, bad := range []int{0, 2, 5, 24, -1} {
		if _, err := g.Price(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Price(%d) err = %v, want validation", bad, err)
		}
	}
}

func TestUpgrade_SetsPremium(t *testing.T) {
	g := newTestGate(t)
	e := g.NewEntitlement("u1", t0)
	now := t0.AddDate(0, 0, 10)

	next, charge, err := g.Upgrade(e, 3, now)
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if next.Status != domain.StatusPremium || next.SubscriptionExpiresAt == nil {
		t.Fatalf("next = %+v", next)
	}
	if !next.SubscriptionExpiresAt.Equal(now.AddDate(0, 3, 0)) {
		t.Errorf("expires = %v", next.SubscriptionExpiresAt)
	}
	if !charge.Amount.Equal(decimal.RequireFromString("0.285")) {
		t.Errorf("charge = %s", charge.Amount)
	}
	if e.Status != domain.StatusFree || e.SubscriptionExpiresAt != nil {
		t.Error("input entitlement must not change")
	}
	st := g.ComputeStatus(next, now)
	if !st.IsPremium || !st.IsActive {
		t.Errorf("state = %+v", st)
	}
}

func TestUpgrade_Rejections(t *testing.T) {
	g := newTestGate(t)
	e := g.NewEntitlement("u1", t0)
	if _, _, err := g.Upgrade(e, 2, t0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad duration: err = %v", err)
	}
	e.Status = domain.StatusEnterprise
	if _, _, err := g.Upgrade(e, 1, t0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("enterprise: err = %v", err)
	}
}

func TestUpgrade_ClearsCancellation(t *testing.T) {
	g := newTestGate(t)
	e, _, _ := g.Upgrade(g.NewEntitlement("u1", t0), 1, t0)
	e, _ = g.Cancel(e, t0.AddDate(0, 0, 5))
	e, _, err := g.Upgrade(e, 12, t0.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if e.CancelledAt != nil {
		t.Error("renewal should clear cancellation")
	}
}

func TestCancel_PremiumUntilExpiryThenFree(t *testing.T) {
	g := newTestGate(t)
	e, _, _ := g.Upgrade(g.NewEntitlement("u1", t0), 1, t0)
	cancelAt := t0.AddDate(0, 0, 3)

	cancelled, err := g.Cancel(e, cancelAt)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(cancelAt) {
		t.Fatalf("CancelledAt = %v", cancelled.CancelledAt)
	}
	st := g.ComputeStatus(cancelled, cancelAt.Add(time.Hour))
	if !st.IsPremium || !st.Cancelled {
		t.Errorf("still premium before expiry: %+v", st)
	}

	after := cancelled.SubscriptionExpiresAt.Add(time.Minute)
	st = g.ComputeStatus(cancelled, after)
	if st.IsPremium || st.IsActive || !st.IsExpired || st.Effective != domain.StatusFree {
		t.Errorf("after expiry should be expired free with no new trial: %+v", st)
	}
	if c := g.RequirePremium(cancelled, after); c.Passed {
		t.Error("RequirePremium should fail after expiry")
	}

	again, err := g.Cancel(cancelled, cancelAt.AddDate(0, 0, 1))
	if err != nil || !again.CancelledAt.Equal(cancelAt) {
		t.Errorf("second cancel: %v, %v", again.CancelledAt, err)
	}
}

func TestCancel_NotSubscribed(t *testing.T) {
	g := newTestGate(t)
	if _, err := g.Cancel(g.NewEntitlement("u1", t0), t0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestRequirePredicates(t *testing.T) {
	g := newTestGate(t)
	trial := g.NewEntitlement("u1", t0)
	premium, _, _ := g.Upgrade(trial, 1, t0)
	expiredTrial := trial.TrialExpiresAt.Add(time.Hour)

	tests := []struct {
		name         string
		e            domain.Entitlement
		now          time.Time
		active, prem bool
	}{
		{"trial running", trial, t0, true, false},
		{"trial expired", trial, expiredTrial, false, false},
		{"premium running", premium, t0.AddDate(0, 0, 1), true, true},
		{"premium lapsed", premium, t0.AddDate(0, 2, 0), false, false},
	}
	for _, tt := range tests {
		a := g.RequireActive(tt.e, tt.now)
		p := g.RequirePremium(tt.e, tt.now)
		if a.Passed != tt.active || p.Passed != tt.prem {
			t.Errorf("%s: active=%+v premium=%+v", tt.name, a, p)
		}
		if !a.Passed && a.Reason == "" || !p.Passed && p.Reason == "" {
			t.Errorf("%s: failed checks must carry a reason", tt.name)
		}
	}
}
