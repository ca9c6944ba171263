// Package service implements the wallet privacy policy: mode transitions with an append-only audit
// trail, access decisions, paid-access grants and anonymization of analytics records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
	"github.com/soyaya/boardling-sub008/internal/privacy/engine"
	"github.com/soyaya/boardling-sub008/internal/telemetry"
	telemetrydomain "github.com/soyaya/boardling-sub008/internal/telemetry/domain"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
	walletrepo "github.com/soyaya/boardling-sub008/internal/wallet/repository"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
	// MaxBatchSize bounds BatchUpdatePrivacyMode.
	MaxBatchSize = 500

	eventSource = "privacy"
)

// WalletRepo is the minimal wallet repository needed by the policy.
type WalletRepo interface {
	GetByID(ctx context.Context, id string) (*walletdomain.Wallet, error)
	UpdatePrivacyMode(ctx context.Context, change domain.ModeChange) error
	UpdatePrivacyModeBatch(ctx context.Context, changes []domain.ModeChange) error
}

// AuditRepo is the minimal audit log reader needed by the policy.
type AuditRepo interface {
	ListByWallet(ctx context.Context, walletID string, limit int32) ([]*domain.AuditEntry, error)
}

// GrantRepo is the minimal paid-access store needed by the policy.
type GrantRepo interface {
	HasPaidAccess(ctx context.Context, walletID, requesterID string) (bool, error)
	Create(ctx context.Context, g *domain.AccessGrant) error
}

// Policy decides who may see a wallet's analytics and manages privacy-mode changes.
// It holds no cached wallet state: every check re-reads the wallet from storage.
type Policy struct {
	wallets   WalletRepo
	audit     AuditRepo
	grants    GrantRepo
	evaluator engine.Evaluator
	events    telemetry.EventEmitter
	now       func() time.Time
}

// NewPolicy returns a Policy. events may be nil to disable change events.
func NewPolicy(wallets WalletRepo, audit AuditRepo, grants GrantRepo, evaluator engine.Evaluator, events telemetry.EventEmitter) *Policy {
	return &Policy{
		wallets:   wallets,
		audit:     audit,
		grants:    grants,
		evaluator: evaluator,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateTransition reports whether a wallet may move from current to next. Every pair of known modes
// is allowed; moving into monetizable additionally requires a payout destination.
func ValidateTransition(current, next walletdomain.PrivacyMode) domain.TransitionResult {
	if !current.Valid() {
		return domain.TransitionResult{Reason: fmt.Sprintf("unknown current privacy mode %q", current)}
	}
	if !next.Valid() {
		return domain.TransitionResult{Reason: fmt.Sprintf("unknown privacy mode %q", next)}
	}
	if next == walletdomain.PrivacyModeMonetizable && current != walletdomain.PrivacyModeMonetizable {
		return domain.TransitionResult{
			Valid:         true,
			RequiresSetup: true,
			Reason:        "monetizable wallets need a payout destination before payments can settle",
		}
	}
	return domain.TransitionResult{Valid: true}
}

// UpdatePrivacyMode sets the wallet's mode and appends an audit entry in one storage transaction.
// The change is effective for the next read.
func (p *Policy) UpdatePrivacyMode(ctx context.Context, walletID string, next walletdomain.PrivacyMode, actorID string) (*domain.AuditEntry, error) {
	if !next.Valid() {
		return nil, apperr.Validation("privacy_mode must be one of private, public, monetizable; got %q", next)
	}
	if walletID == "" {
		return nil, apperr.Validation("wallet_id is required")
	}
	w, err := p.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperr.Internal("load wallet", err)
	}
	if w == nil {
		return nil, apperr.NotFound("wallet %s not found", walletID)
	}
	change := p.modeChange(w, next, actorID)
	if err := p.wallets.UpdatePrivacyMode(ctx, change); err != nil {
		if errors.Is(err, walletrepo.ErrNotFound) {
			return nil, apperr.NotFound("wallet %s not found", walletID)
		}
		return nil, apperr.Internal("update privacy mode", err)
	}
	p.emitChange(ctx, change.Audit)
	return change.Audit, nil
}

// BatchUpdatePrivacyMode validates every wallet id first and then commits all changes together.
// If any id is empty or unknown the whole batch is rejected and nothing is written.
func (p *Policy) BatchUpdatePrivacyMode(ctx context.Context, walletIDs []string, next walletdomain.PrivacyMode, actorID string) ([]*domain.AuditEntry, error) {
	if !next.Valid() {
		return nil, apperr.Validation("privacy_mode must be one of private, public, monetizable; got %q", next)
	}
	if len(walletIDs) == 0 {
		return nil, apperr.Validation("wallet_ids is required")
	}
	if len(walletIDs) > MaxBatchSize {
		return nil, apperr.Validation("at most %d wallets per batch", MaxBatchSize)
	}

	seen := make(map[string]struct{}, len(walletIDs))
	wallets := make([]*walletdomain.Wallet, 0, len(walletIDs))
	var missing []string
	for _, id := range walletIDs {
		if id == "" {
			return nil, apperr.Validation("wallet_ids must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		w, err := p.wallets.GetByID(ctx, id)
		if err != nil {
			return nil, apperr.Internal("load wallet", err)
		}
		if w == nil {
			missing = append(missing, id)
			continue
		}
		wallets = append(wallets, w)
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("wallets not found: %s", strings.Join(missing, ", "))
	}

	changes := make([]domain.ModeChange, len(wallets))
	for i, w := range wallets {
		changes[i] = p.modeChange(w, next, actorID)
	}
	if err := p.wallets.UpdatePrivacyModeBatch(ctx, changes); err != nil {
		if errors.Is(err, walletrepo.ErrNotFound) {
			return nil, apperr.NotFound("batch rejected: %v", err)
		}
		return nil, apperr.Internal("batch update privacy mode", err)
	}
	entries := make([]*domain.AuditEntry, len(changes))
	for i, c := range changes {
		entries[i] = c.Audit
		p.emitChange(ctx, c.Audit)
	}
	return entries, nil
}

// FilterWalletsByPrivacy returns the wallets whose mode is in allowed, preserving input order.
// Nil wallets are skipped; the input slice is not modified.
func FilterWalletsByPrivacy(wallets []*walletdomain.Wallet, allowed ...walletdomain.PrivacyMode) []*walletdomain.Wallet {
	out := make([]*walletdomain.Wallet, 0, len(wallets))
	if len(allowed) == 0 {
		return out
	}
	ok := make(map[walletdomain.PrivacyMode]struct{}, len(allowed))
	for _, m := range allowed {
		ok[m] = struct{}{}
	}
	for _, w := range wallets {
		if w == nil {
			continue
		}
		if _, keep := ok[w.PrivacyMode]; keep {
			out = append(out, w)
		}
	}
	return out
}

// CheckAccess decides how requesterID may see walletID's analytics.
func (p *Policy) CheckAccess(ctx context.Context, walletID, requesterID string) (domain.AccessDecision, error) {
	_, d, err := p.Authorize(ctx, walletID, requesterID)
	return d, err
}

// Authorize loads the wallet and decides access in one read. It returns NotFound for unknown wallets.
// A failed policy evaluation yields a denied decision, not an error.
func (p *Policy) Authorize(ctx context.Context, walletID, requesterID string) (*walletdomain.Wallet, domain.AccessDecision, error) {
	if walletID == "" {
		return nil, domain.Denied("wallet_id is required"), apperr.Validation("wallet_id is required")
	}
	w, err := p.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, domain.Denied("wallet lookup failed"), apperr.Internal("load wallet", err)
	}
	if w == nil {
		return nil, domain.Denied("wallet not found"), apperr.NotFound("wallet %s not found", walletID)
	}
	in := engine.AccessInput{
		WalletID:    w.ID,
		PrivacyMode: w.PrivacyMode,
		RequesterID: requesterID,
		IsOwner:     w.IsOwnedBy(requesterID),
	}
	if !in.IsOwner && requesterID != "" && w.PrivacyMode == walletdomain.PrivacyModeMonetizable {
		paid, err := p.grants.HasPaidAccess(ctx, w.ID, requesterID)
		if err != nil {
			return w, domain.Denied("payment lookup failed"), apperr.Internal("check paid access", err)
		}
		in.HasPaid = paid
	}
	d, err := p.evaluator.EvaluateAccess(ctx, in)
	if err != nil {
		log.Printf("privacy: access evaluation for wallet %s failed: %v", w.ID, err)
		return w, domain.Denied("access policy unavailable"), nil
	}
	return w, d, nil
}

// RecordPaidAccess records a settled payment letting requesterID read a monetizable wallet.
// Recording the same pair twice is a no-op.
func (p *Policy) RecordPaidAccess(ctx context.Context, walletID, requesterID, paymentRef string) (*domain.AccessGrant, error) {
	if walletID == "" || requesterID == "" {
		return nil, apperr.Validation("wallet_id and requester_id are required")
	}
	if strings.TrimSpace(paymentRef) == "" {
		return nil, apperr.Validation("payment_ref is required")
	}
	w, err := p.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperr.Internal("load wallet", err)
	}
	if w == nil {
		return nil, apperr.NotFound("wallet %s not found", walletID)
	}
	if w.PrivacyMode != walletdomain.PrivacyModeMonetizable {
		return nil, apperr.Validation("wallet %s is not monetizable", walletID)
	}
	if w.IsOwnedBy(requesterID) {
		return nil, apperr.Validation("owners do not pay for their own wallets")
	}
	g := &domain.AccessGrant{
		ID:          uuid.New().String(),
		WalletID:    walletID,
		RequesterID: requesterID,
		PaymentRef:  paymentRef,
		CreatedAt:   p.now(),
	}
	if err := p.grants.Create(ctx, g); err != nil {
		return nil, apperr.Internal("record paid access", err)
	}
	telemetry.EmitAsync(p.events, ctx, &telemetrydomain.Event{
		Type:      telemetrydomain.EventPaidAccessGranted,
		Source:    eventSource,
		WalletID:  walletID,
		UserID:    requesterID,
		Metadata:  map[string]string{"payment_ref": paymentRef},
		CreatedAt: g.CreatedAt,
	})
	return g, nil
}

// GetAuditLog returns the wallet's mode changes, most recent first. limit <= 0 means DefaultAuditLimit;
// larger values are capped at MaxAuditLimit.
func (p *Policy) GetAuditLog(ctx context.Context, walletID string, limit int) ([]*domain.AuditEntry, error) {
	if walletID == "" {
		return nil, apperr.Validation("wallet_id is required")
	}
	w, err := p.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperr.Internal("load wallet", err)
	}
	if w == nil {
		return nil, apperr.NotFound("wallet %s not found", walletID)
	}
	entries, err := p.audit.ListByWallet(ctx, walletID, int32(clampLimit(limit)))
	if err != nil {
		return nil, apperr.Internal("list audit log", err)
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAuditLimit
	case limit > MaxAuditLimit:
		return MaxAuditLimit
	}
	return limit
}

func (p *Policy) modeChange(w *walletdomain.Wallet, next walletdomain.PrivacyMode, actorID string) domain.ModeChange {
	return domain.ModeChange{
		WalletID: w.ID,
		Mode:     next,
		Audit: &domain.AuditEntry{
			ID:           uuid.New().String(),
			WalletID:     w.ID,
			PreviousMode: w.PrivacyMode,
			NewMode:      next,
			ActorID:      actorID,
			CreatedAt:    p.now(),
		},
	}
}

func (p *Policy) emitChange(ctx context.Context, e *domain.AuditEntry) {
	telemetry.EmitAsync(p.events, ctx, &telemetrydomain.Event{
		Type:     telemetrydomain.EventPrivacyModeChanged,
		Source:   eventSource,
		WalletID: e.WalletID,
		ActorID:  e.ActorID,
		Metadata: map[string]string{
			"previous_mode": string(e.PreviousMode),
			"new_mode":      string(e.NewMode),
			"audit_id":      e.ID,
		},
		CreatedAt: e.CreatedAt,
	})
}
