// Package service implements the access broker: the single entry point that applies privacy decisions
// and entitlement checks to every analytics request before metrics are computed.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/aggregator"
	analyticsdomain "github.com/soyaya/boardling-sub008/internal/analytics/domain"
	entdomain "github.com/soyaya/boardling-sub008/internal/entitlement/domain"
	entservice "github.com/soyaya/boardling-sub008/internal/entitlement/service"
	paymentdomain "github.com/soyaya/boardling-sub008/internal/payment/domain"
	paymentservice "github.com/soyaya/boardling-sub008/internal/payment/service"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	privacydomain "github.com/soyaya/boardling-sub008/internal/privacy/domain"
	privacyservice "github.com/soyaya/boardling-sub008/internal/privacy/service"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// PremiumFeatureMonths is the subscription length offered when a premium feature is gated.
const PremiumFeatureMonths = 1

// Privacy is the privacy policy as used by the broker.
type Privacy interface {
	Authorize(ctx context.Context, walletID, requesterID string) (*walletdomain.Wallet, privacydomain.AccessDecision, error)
	UpdatePrivacyMode(ctx context.Context, walletID string, next walletdomain.PrivacyMode, actorID string) (*privacydomain.AuditEntry, error)
	BatchUpdatePrivacyMode(ctx context.Context, walletIDs []string, next walletdomain.PrivacyMode, actorID string) ([]*privacydomain.AuditEntry, error)
	GetAuditLog(ctx context.Context, walletID string, limit int) ([]*privacydomain.AuditEntry, error)
}

// Entitlements loads and stores entitlements. Upgrades are applied by Settlement, not here.
type Entitlements interface {
	EnsureEntitlement(ctx context.Context, userID string) (*entdomain.Entitlement, error)
	Cancel(ctx context.Context, userID string) (*entdomain.Entitlement, error)
}

// Payments starts payment flows.
type Payments interface {
	InitiatePaymentFlow(ctx context.Context, req paymentservice.Request) (*paymentdomain.Intent, error)
}

// DecisionRecorder observes access decisions, e.g. as metrics. Optional.
type DecisionRecorder interface {
	RecordAccessDecision(ctx context.Context, dataLevel string, requiresPayment bool)
}

// Broker orchestrates privacy, entitlement and aggregation per request. It keeps no state between calls.
type Broker struct {
	privacy      Privacy
	gate         *entservice.Gate
	entitlements Entitlements
	payments     Payments
	agg          *aggregator.Aggregator
	recorder     DecisionRecorder
	now          func() time.Time
}

// NewBroker returns a Broker. recorder may be nil.
func NewBroker(privacy Privacy, gate *entservice.Gate, entitlements Entitlements, payments Payments, agg *aggregator.Aggregator, recorder DecisionRecorder) *Broker {
	return &Broker{
		privacy:      privacy,
		gate:         gate,
		entitlements: entitlements,
		payments:     payments,
		agg:          agg,
		recorder:     recorder,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// AnalyticsRequest names the wallets a requester wants analytics for.
type AnalyticsRequest struct {
	WalletIDs   []string `json:"wallet_ids"`
	RequesterID string   `json:"requester_id"`
	// SamplesSince is the start of the window the supplied samples were loaded from; zero means
	// the samples are the wallets' full history.
	SamplesSince time.Time `json:"samples_since"`
}

// AnalyticsData holds only what the requester may see. Wallets are full records the requester owns;
// AnonymizedWallets carry no identifiers.
type AnalyticsData struct {
	Wallets           []privacydomain.WalletRecord    `json:"wallets"`
	AnonymizedWallets []privacydomain.AnonymousRecord `json:"anonymized_wallets"`
	Cohorts           []analyticsdomain.CohortRecord  `json:"cohorts"`
	Funnel            []analyticsdomain.FunnelStage   `json:"funnel"`
	Segments          []analyticsdomain.SegmentBucket `json:"segments"`
}

// PrivacySummary counts how the requested wallets were treated.
type PrivacySummary struct {
	IsOwner        bool `json:"is_owner"`
	TotalWallets   int  `json:"total_wallets"`
	VisibleWallets int  `json:"visible_wallets"`
	Anonymized     int  `json:"anonymized"`
	// PaymentRequired lists requested wallets that become readable after payment.
	PaymentRequired []string `json:"payment_required"`
}

type AnalyticsResult struct {
	Data    AnalyticsData  `json:"data"`
	Privacy PrivacySummary `json:"privacy"`
	// SamplesSince bounds the history behind the metrics. A wallet active before it is placed in the
	// cohort of its first active week inside the window.
	SamplesSince *time.Time `json:"samples_since,omitempty"`
}

// GetAnalytics decides access for every requested wallet, then computes metrics over the visible ones.
// Denied and unknown wallets are left out of the data but counted in TotalWallets. The requester
// needs a running trial or subscription.
func (b *Broker) GetAnalytics(ctx context.Context, req AnalyticsRequest, samples []analyticsdomain.ActivitySample) (*AnalyticsResult, error) {
	now := b.now()
	if req.RequesterID != "" {
		e, err := b.entitlements.EnsureEntitlement(ctx, req.RequesterID)
		if err != nil {
			return nil, err
		}
		if c := b.gate.RequireActive(*e, now); !c.Passed {
			return nil, apperr.PaymentRequired("%s", c.Reason)
		}
	}

	ids := DedupeWalletIDs(req.WalletIDs)
	res := &AnalyticsResult{
		Data: AnalyticsData{
			Wallets:           []privacydomain.WalletRecord{},
			AnonymizedWallets: []privacydomain.AnonymousRecord{},
		},
		Privacy: PrivacySummary{TotalWallets: len(ids), PaymentRequired: []string{}},
	}
	if !req.SamplesSince.IsZero() {
		since := req.SamplesSince.UTC()
		res.SamplesSince = &since
	}

	type visible struct {
		wallet *walletdomain.Wallet
		level  privacydomain.DataLevel
	}
	var shown []visible
	owned := 0
	for _, id := range ids {
		w, d, err := b.privacy.Authorize(ctx, id, req.RequesterID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if b.recorder != nil {
			b.recorder.RecordAccessDecision(ctx, string(d.DataLevel), d.RequiresPayment)
		}
		if w.IsOwnedBy(req.RequesterID) {
			owned++
		}
		if !d.Allowed {
			if d.RequiresPayment {
				res.Privacy.PaymentRequired = append(res.Privacy.PaymentRequired, id)
			}
			continue
		}
		shown = append(shown, visible{wallet: w, level: d.DataLevel})
	}
	res.Privacy.IsOwner = len(ids) > 0 && owned == len(ids)

	visibleIDs := make([]string, len(shown))
	keep := make(map[string]struct{}, len(shown))
	for i, v := range shown {
		visibleIDs[i] = v.wallet.ID
		keep[v.wallet.ID] = struct{}{}
	}
	var scoped []analyticsdomain.ActivitySample
	for _, s := range samples {
		if _, ok := keep[s.WalletID]; ok {
			scoped = append(scoped, s)
		}
	}

	history := b.agg.ScoreHistory(scoped)
	byWallet := make(map[string][]analyticsdomain.ActivitySample, len(shown))
	for _, s := range scoped {
		byWallet[s.WalletID] = append(byWallet[s.WalletID], s)
	}
	var anonymize []privacydomain.Record
	scores := make(map[string][]analyticsdomain.ProductivityScore, len(shown))
	for _, v := range shown {
		scores[v.wallet.ID] = history[v.wallet.ID]
		rec := walletRecord(v.wallet, byWallet[v.wallet.ID], history[v.wallet.ID])
		if v.level == privacydomain.DataLevelFull {
			res.Data.Wallets = append(res.Data.Wallets, rec)
			continue
		}
		anonymize = append(anonymize, rec)
	}
	res.Data.AnonymizedWallets = append(res.Data.AnonymizedWallets, privacyservice.AnonymizeWalletDataBatch(anonymize)...)

	res.Data.Cohorts = b.agg.ComputeCohorts(visibleIDs, scoped, now)
	res.Data.Funnel = b.agg.ComputeFunnel(visibleIDs, scoped)
	res.Data.Segments = b.agg.Segment(scores)

	res.Privacy.VisibleWallets = len(shown)
	res.Privacy.Anonymized = len(anonymize)
	return res, nil
}

// FeatureGate is the outcome of a premium feature check. PaymentIntent is set only when payment is required.
type FeatureGate struct {
	Feature         string                `json:"feature"`
	Allowed         bool                  `json:"allowed"`
	RequiresPayment bool                  `json:"requires_payment"`
	Reason          string                `json:"reason,omitempty"`
	PaymentIntent   *paymentdomain.Intent `json:"payment_intent,omitempty"`
}

// GatePremiumFeature allows feature for premium users. Otherwise it starts a payment flow for one month
// of premium and returns the intent.
func (b *Broker) GatePremiumFeature(ctx context.Context, userID, feature string) (*FeatureGate, error) {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return nil, apperr.Validation("feature is required")
	}
	e, err := b.entitlements.EnsureEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	check := b.gate.RequirePremium(*e, b.now())
	if check.Passed {
		return &FeatureGate{Feature: feature, Allowed: true}, nil
	}
	charge, err := b.gate.Price(PremiumFeatureMonths)
	if err != nil {
		return nil, err
	}
	intent, err := b.payments.InitiatePaymentFlow(ctx, paymentservice.Request{
		UserID:  userID,
		Amount:  charge.Amount,
		Purpose: paymentdomain.PurposePremiumSubscription,
		Months:  PremiumFeatureMonths,
	})
	if err != nil {
		return nil, err
	}
	return &FeatureGate{Feature: feature, RequiresPayment: true, Reason: check.Reason, PaymentIntent: intent}, nil
}

// EntitlementView is an entitlement with its state now.
type EntitlementView struct {
	UserID                string           `json:"user_id"`
	Status                entdomain.Status `json:"status"`
	TrialExpiresAt        time.Time        `json:"trial_expires_at"`
	SubscriptionExpiresAt *time.Time       `json:"subscription_expires_at,omitempty"`
	CancelledAt           *time.Time       `json:"cancelled_at,omitempty"`
	State                 entdomain.State  `json:"state"`
}

func (b *Broker) view(e *entdomain.Entitlement) *EntitlementView {
	return &EntitlementView{
		UserID:                e.UserID,
		Status:                e.Status,
		TrialExpiresAt:        e.TrialExpiresAt,
		SubscriptionExpiresAt: e.SubscriptionExpiresAt,
		CancelledAt:           e.CancelledAt,
		State:                 b.gate.ComputeStatus(*e, b.now()),
	}
}

// Entitlement returns the user's entitlement, creating the trial on first use.
func (b *Broker) Entitlement(ctx context.Context, userID string) (*EntitlementView, error) {
	e, err := b.entitlements.EnsureEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.view(e), nil
}

// UpgradeResult is the current entitlement, the upgrade price and the payment intent whose settlement
// applies the upgrade.
type UpgradeResult struct {
	Entitlement   *EntitlementView      `json:"entitlement"`
	Charge        entdomain.Charge      `json:"charge"`
	PaymentIntent *paymentdomain.Intent `json:"payment_intent"`
}

// Upgrade prices months of premium for userID and starts the payment flow for the charge. The
// entitlement is not changed until the intent settles.
func (b *Broker) Upgrade(ctx context.Context, userID string, months int) (*UpgradeResult, error) {
	if _, err := b.gate.Price(months); err != nil {
		return nil, err
	}
	e, err := b.entitlements.EnsureEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, charge, err := b.gate.Upgrade(*e, months, b.now())
	if err != nil {
		return nil, err
	}
	intent, err := b.payments.InitiatePaymentFlow(ctx, paymentservice.Request{
		UserID:  userID,
		Amount:  charge.Amount,
		Purpose: paymentdomain.PurposePremiumSubscription,
		Months:  months,
	})
	if err != nil {
		return nil, err
	}
	return &UpgradeResult{Entitlement: b.view(e), Charge: charge, PaymentIntent: intent}, nil
}

// Cancel marks userID's subscription as non-renewing.
func (b *Broker) Cancel(ctx context.Context, userID string) (*EntitlementView, error) {
	e, err := b.entitlements.Cancel(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.view(e), nil
}

// ModeUpdate is a committed privacy change together with the transition check for it.
type ModeUpdate struct {
	Entry      *privacydomain.AuditEntry      `json:"audit_entry"`
	Transition privacydomain.TransitionResult `json:"transition"`
}

// UpdatePrivacyMode changes a wallet's mode on behalf of its owner.
func (b *Broker) UpdatePrivacyMode(ctx context.Context, walletID string, next walletdomain.PrivacyMode, actorID string) (*ModeUpdate, error) {
	if !next.Valid() {
		return nil, apperr.Validation("privacy_mode must be one of private, public, monetizable; got %q", next)
	}
	w, err := b.requireOwner(ctx, walletID, actorID)
	if err != nil {
		return nil, err
	}
	transition := privacyservice.ValidateTransition(w.PrivacyMode, next)
	entry, err := b.privacy.UpdatePrivacyMode(ctx, walletID, next, actorID)
	if err != nil {
		return nil, err
	}
	return &ModeUpdate{Entry: entry, Transition: transition}, nil
}

// BatchUpdatePrivacyMode changes several wallets at once. The actor must own every existing wallet;
// unknown ids are reported by the policy and reject the batch.
func (b *Broker) BatchUpdatePrivacyMode(ctx context.Context, walletIDs []string, next walletdomain.PrivacyMode, actorID string) ([]*privacydomain.AuditEntry, error) {
	if !next.Valid() {
		return nil, apperr.Validation("privacy_mode must be one of private, public, monetizable; got %q", next)
	}
	ids := DedupeWalletIDs(walletIDs)
	var foreign []string
	for _, id := range ids {
		w, _, err := b.privacy.Authorize(ctx, id, actorID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
				continue
			}
			return nil, err
		}
		if !w.IsOwnedBy(actorID) {
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		return nil, apperr.Forbidden("not the owner of wallets: %s", strings.Join(foreign, ", "))
	}
	return b.privacy.BatchUpdatePrivacyMode(ctx, ids, next, actorID)
}

// CheckAccess returns the access decision for one wallet.
func (b *Broker) CheckAccess(ctx context.Context, walletID, requesterID string) (privacydomain.AccessDecision, error) {
	_, d, err := b.privacy.Authorize(ctx, walletID, requesterID)
	if err == nil && b.recorder != nil {
		b.recorder.RecordAccessDecision(ctx, string(d.DataLevel), d.RequiresPayment)
	}
	return d, err
}

// WalletAccess is the access decision for one wallet and, when payment would unlock it, the intent
// to pay.
type WalletAccess struct {
	Decision      privacydomain.AccessDecision `json:"decision"`
	PaymentIntent *paymentdomain.Intent        `json:"payment_intent,omitempty"`
}

// RequestWalletAccess starts a payment for requesterID to read a monetizable wallet. Access is granted
// only when the intent settles. A wallet that is already readable needs no payment; one that payment
// cannot unlock is forbidden.
func (b *Broker) RequestWalletAccess(ctx context.Context, walletID, requesterID string) (*WalletAccess, error) {
	if requesterID == "" {
		return nil, apperr.Validation("requester_id is required")
	}
	w, d, err := b.privacy.Authorize(ctx, walletID, requesterID)
	if err != nil {
		return nil, err
	}
	if !d.RequiresPayment {
		if d.Allowed {
			return &WalletAccess{Decision: d}, nil
		}
		return nil, apperr.Forbidden("%s", d.Reason)
	}
	intent, err := b.payments.InitiatePaymentFlow(ctx, paymentservice.Request{
		UserID:   requesterID,
		Amount:   b.gate.WalletAccessPrice(),
		Purpose:  paymentdomain.PurposeWalletAccess,
		WalletID: w.ID,
	})
	if err != nil {
		return nil, err
	}
	return &WalletAccess{Decision: d, PaymentIntent: intent}, nil
}

// AuditLog returns a wallet's privacy changes to its owner.
func (b *Broker) AuditLog(ctx context.Context, walletID, requesterID string, limit int) ([]*privacydomain.AuditEntry, error) {
	if _, err := b.requireOwner(ctx, walletID, requesterID); err != nil {
		return nil, err
	}
	return b.privacy.GetAuditLog(ctx, walletID, limit)
}

func (b *Broker) requireOwner(ctx context.Context, walletID, userID string) (*walletdomain.Wallet, error) {
	w, _, err := b.privacy.Authorize(ctx, walletID, userID)
	if err != nil {
		return nil, err
	}
	if !w.IsOwnedBy(userID) {
		return nil, apperr.Forbidden("only the wallet owner may do this")
	}
	return w, nil
}

func walletRecord(w *walletdomain.Wallet, samples []analyticsdomain.ActivitySample, history []analyticsdomain.ProductivityScore) privacydomain.WalletRecord {
	rec := privacydomain.WalletRecord{
		WalletID:    w.ID,
		ProjectID:   w.ProjectID,
		OwnerID:     w.OwnerID,
		Address:     w.Address,
		AddressKind: w.AddressKind,
		PrivacyMode: w.PrivacyMode,
		IsActive:    w.IsActive,
		CreatedAt:   w.CreatedAt,
		History:     make([]analyticsdomain.ProductivityScore, len(history)),
	}
	copy(rec.History, history)
	for _, s := range samples {
		rec.TransactionCount += s.TransactionCount
		rec.ActiveDays += s.ActiveDays
		rec.TotalVolume += s.TotalVolume
	}
	if n := len(history); n > 0 {
		latest := history[n-1]
		rec.Latest = &latest
	}
	return rec
}

// DedupeWalletIDs trims ids and drops blanks and repeats, keeping first-seen order.
func DedupeWalletIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
