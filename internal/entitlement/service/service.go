// Package service holds the entitlement rules (Gate) and the Service that loads and stores
// entitlements around them.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/soyaya/boardling-sub008/internal/entitlement/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	"github.com/soyaya/boardling-sub008/internal/telemetry"
	telemetrydomain "github.com/soyaya/boardling-sub008/internal/telemetry/domain"
)

// Repo is the minimal entitlement repository needed by Service.
type Repo interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Entitlement, error)
	CreateIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error)
	Save(ctx context.Context, e *domain.Entitlement) error
}

// Service applies Gate rules to stored entitlements.
type Service struct {
	gate   *Gate
	repo   Repo
	events telemetry.EventEmitter
	now    func() time.Time
}

// NewService returns a Service. events may be nil.
func NewService(gate *Gate, repo Repo, events telemetry.EventEmitter) *Service {
	return &Service{gate: gate, repo: repo, events: events, now: func() time.Time { return time.Now().UTC() }}
}

// Gate returns the rules the service applies.
func (s *Service) Gate() *Gate { return s.gate }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Get returns the user's entitlement or a NotFound error.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	e, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load entitlement", err)
	}
	if e == nil {
		return nil, apperr.NotFound("no entitlement for user %s", userID)
	}
	return e, nil
}

// EnsureEntitlement returns the user's entitlement, creating the free trial on first use.
// A user never receives a second trial.
func (s *Service) EnsureEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	e, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load entitlement", err)
	}
	if e != nil {
		return e, nil
	}
	fresh := s.gate.NewEntitlement(userID, s.now())
	if _, err := s.repo.CreateIfAbsent(ctx, &fresh); err != nil {
		return nil, apperr.Internal("create entitlement", err)
	}
	// A concurrent creator may have won; return the stored row.
	return s.Get(ctx, userID)
}

// Status returns the entitlement together with its state now.
func (s *Service) Status(ctx context.Context, userID string) (*domain.Entitlement, domain.State, error) {
	e, err := s.Get(ctx, userID)
	if err != nil {
		return nil, domain.State{}, err
	}
	return e, s.gate.ComputeStatus(*e, s.now()), nil
}

// Upgrade moves the user to premium for months and stores the result.
func (s *Service) Upgrade(ctx context.Context, userID string, months int) (*domain.Entitlement, domain.Charge, error) {
	e, err := s.Get(ctx, userID)
	if err != nil {
		return nil, domain.Charge{}, err
	}
	next, charge, err := s.gate.Upgrade(*e, months, s.now())
	if err != nil {
		return nil, domain.Charge{}, err
	}
	if err := s.repo.Save(ctx, &next); err != nil {
		return nil, domain.Charge{}, apperr.Internal("save entitlement", err)
	}
	s.emit(ctx, &next, "upgrade", map[string]string{"months": strconv.Itoa(months), "amount": charge.Amount.String()})
	return &next, charge, nil
}

// Cancel marks the user's subscription as non-renewing and stores the result.
func (s *Service) Cancel(ctx context.Context, userID string) (*domain.Entitlement, error) {
	e, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := s.gate.Cancel(*e, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, &next); err != nil {
		return nil, apperr.Internal("save entitlement", err)
	}
	s.emit(ctx, &next, "cancel", nil)
	return &next, nil
}

func (s *Service) emit(ctx context.Context, e *domain.Entitlement, action string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	meta["action"] = action
	meta["status"] = string(e.Status)
	telemetry.EmitAsync(s.events, ctx, &telemetrydomain.Event{
		Type:      telemetrydomain.EventEntitlementChanged,
		Source:    "entitlement",
		UserID:    e.UserID,
		Metadata:  meta,
		CreatedAt: e.UpdatedAt,
	})
}
