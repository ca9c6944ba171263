// Package handler exposes the access broker over HTTP. Every route expects an authenticated requester
// in the request context; the requester id never comes from the request body.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	accessservice "github.com/soyaya/boardling-sub008/internal/access/service"
	analyticsdomain "github.com/soyaya/boardling-sub008/internal/analytics/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
	privacydomain "github.com/soyaya/boardling-sub008/internal/privacy/domain"
	privacyservice "github.com/soyaya/boardling-sub008/internal/privacy/service"
	"github.com/soyaya/boardling-sub008/internal/server/middleware"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// Broker is the subset of *accessservice.Broker served over HTTP.
type Broker interface {
	GetAnalytics(ctx context.Context, req accessservice.AnalyticsRequest, samples []analyticsdomain.ActivitySample) (*accessservice.AnalyticsResult, error)
	CheckAccess(ctx context.Context, walletID, requesterID string) (privacydomain.AccessDecision, error)
	UpdatePrivacyMode(ctx context.Context, walletID string, next walletdomain.PrivacyMode, actorID string) (*accessservice.ModeUpdate, error)
	BatchUpdatePrivacyMode(ctx context.Context, walletIDs []string, next walletdomain.PrivacyMode, actorID string) ([]*privacydomain.AuditEntry, error)
	AuditLog(ctx context.Context, walletID, requesterID string, limit int) ([]*privacydomain.AuditEntry, error)
	RequestWalletAccess(ctx context.Context, walletID, requesterID string) (*accessservice.WalletAccess, error)
	Entitlement(ctx context.Context, userID string) (*accessservice.EntitlementView, error)
	Upgrade(ctx context.Context, userID string, months int) (*accessservice.UpgradeResult, error)
	Cancel(ctx context.Context, userID string) (*accessservice.EntitlementView, error)
	GatePremiumFeature(ctx context.Context, userID, feature string) (*accessservice.FeatureGate, error)
}

// SampleLoader reads activity samples from the ingestion store.
type SampleLoader interface {
	ListSamples(ctx context.Context, walletIDs []string, since time.Time) ([]analyticsdomain.ActivitySample, error)
}

// ModeChangeRecorder counts committed privacy changes. Optional.
type ModeChangeRecorder interface {
	RecordModeChanges(ctx context.Context, newMode string, n int)
}

// Handler serves the /v1 API.
type Handler struct {
	broker   Broker
	samples  SampleLoader
	lookback time.Duration
	metrics  ModeChangeRecorder
	now      func() time.Time
}

// New returns a Handler. Analytics requests load samples no older than lookback. metrics may be nil.
func New(broker Broker, samples SampleLoader, lookback time.Duration, metrics ModeChangeRecorder) *Handler {
	return &Handler{
		broker:   broker,
		samples:  samples,
		lookback: lookback,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/analytics", h.getAnalytics)
	r.Get("/v1/wallets/{id}/access", h.checkAccess)
	r.Put("/v1/wallets/{id}/privacy", h.updatePrivacyMode)
	r.Post("/v1/wallets/privacy/batch", h.batchUpdatePrivacyMode)
	r.Get("/v1/wallets/{id}/audit", h.auditLog)
	r.Post("/v1/wallets/{id}/access/payment", h.requestWalletAccess)
	r.Get("/v1/entitlement", h.entitlement)
	r.Post("/v1/entitlement/upgrade", h.upgrade)
	r.Post("/v1/entitlement/cancel", h.cancel)
	r.Get("/v1/features/{feature}", h.gateFeature)
}

func requester(r *http.Request) (string, error) {
	id, ok := middleware.RequesterID(r.Context())
	if !ok {
		return "", apperr.Forbidden("no authenticated requester")
	}
	return id, nil
}

type analyticsRequest struct {
	WalletIDs []string `json:"wallet_ids"`
}

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req analyticsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.WalletIDs) > privacyservice.MaxBatchSize {
		writeError(w, r, apperr.Validation("at most %d wallet_ids per request", privacyservice.MaxBatchSize))
		return
	}
	ids := accessservice.DedupeWalletIDs(req.WalletIDs)
	// Cohorts start inside the lookback window; older activity is not loaded.
	since := h.now().Add(-h.lookback)
	samples, err := h.samples.ListSamples(r.Context(), ids, since)
	if err != nil {
		writeError(w, r, apperr.Internal("load activity samples", err))
		return
	}
	res, err := h.broker.GetAnalytics(r.Context(), accessservice.AnalyticsRequest{WalletIDs: ids, RequesterID: userID, SamplesSince: since}, samples)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.broker.CheckAccess(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type privacyModeRequest struct {
	PrivacyMode walletdomain.PrivacyMode `json:"privacy_mode"`
}

func (h *Handler) updatePrivacyMode(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req privacyModeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.broker.UpdatePrivacyMode(r.Context(), chi.URLParam(r, "id"), req.PrivacyMode, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.recordModeChanges(r.Context(), req.PrivacyMode, 1)
	writeJSON(w, http.StatusOK, res)
}

type batchPrivacyRequest struct {
	WalletIDs   []string                 `json:"wallet_ids"`
	PrivacyMode walletdomain.PrivacyMode `json:"privacy_mode"`
}

type auditEntries struct {
	Entries []*privacydomain.AuditEntry `json:"entries"`
}

func (h *Handler) batchUpdatePrivacyMode(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchPrivacyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.broker.BatchUpdatePrivacyMode(r.Context(), accessservice.DedupeWalletIDs(req.WalletIDs), req.PrivacyMode, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.recordModeChanges(r.Context(), req.PrivacyMode, len(entries))
	writeJSON(w, http.StatusOK, auditEntries{Entries: entries})
}

func (h *Handler) auditLog(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
	}
	entries, err := h.broker.AuditLog(r.Context(), chi.URLParam(r, "id"), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*privacydomain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditEntries{Entries: entries})
}

// requestWalletAccess starts a payment to read a monetizable wallet. Access is granted when the
// settlement worker sees the payment, never from this request.
func (h *Handler) requestWalletAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.broker.RequestWalletAccess(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.PaymentIntent != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handler) entitlement(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.broker.Entitlement(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type upgradeRequest struct {
	Months int `json:"months"`
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req upgradeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.broker.Upgrade(r.Context(), userID, req.Months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.broker.Cancel(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) gateFeature(w http.ResponseWriter, r *http.Request) {
	userID, err := requester(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gate, err := h.broker.GatePremiumFeature(r.Context(), userID, chi.URLParam(r, "feature"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

func (h *Handler) recordModeChanges(ctx context.Context, mode walletdomain.PrivacyMode, n int) {
	if h.metrics != nil {
		h.metrics.RecordModeChanges(ctx, string(mode), n)
	}
}
