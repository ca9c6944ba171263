// Package handler serves the readiness check.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the access policy engine can still evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// Handler answers GET /healthz with 200 when every configured dependency is healthy and 503 otherwise.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// New returns a Handler. Nil dependencies are skipped.
func New(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := response{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			log.Printf("health: %s check failed: %v", name, err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	if h.pinger != nil {
		check("database", h.pinger.PingContext)
	}
	if h.policy != nil {
		check("policy", h.policy.HealthCheck)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
