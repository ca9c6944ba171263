// Package server assembles the HTTP API: middleware order, public and authenticated routes,
// and the listener lifecycle.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/soyaya/boardling-sub008/internal/ratelimit"
	"github.com/soyaya/boardling-sub008/internal/server/middleware"
)

// API registers the authenticated routes.
type API interface {
	Routes(r chi.Router)
}

// Deps holds the router's collaborators.
type Deps struct {
	// API serves every /v1 route behind authentication and rate limiting.
	API API
	// Verifier validates bearer access tokens. Required.
	Verifier middleware.TokenVerifier
	// Limiter throttles authenticated requesters. If nil, requests are not rate limited.
	Limiter ratelimit.Limiter
	// Health serves GET /healthz without authentication. If nil, /healthz always answers 200.
	Health http.Handler
	// Metrics records request counts and latency. Optional.
	Metrics middleware.RequestRecorder
	// TracerProvider creates request spans. If nil, the global provider is used.
	TracerProvider trace.TracerProvider
}

// NewRouter returns the API router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	var traceOpts []otelhttp.Option
	if deps.TracerProvider != nil {
		traceOpts = append(traceOpts, otelhttp.WithTracerProvider(deps.TracerProvider))
	}
	r.Use(otelhttp.NewMiddleware("boardling-api", traceOpts...))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	health := deps.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
	}
	r.Method(http.MethodGet, "/healthz", health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Verifier))
		if deps.Limiter != nil {
			r.Use(ratelimit.Middleware(deps.Limiter, middleware.RequesterKey))
		}
		deps.API.Routes(r)
	})
	return r
}

// NewHTTPServer returns an http.Server with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ShutdownTimeout bounds how long in-flight requests may run after shutdown starts.
const ShutdownTimeout = 15 * time.Second

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, listen func(*http.Server) error) error {
	if listen == nil {
		listen = func(s *http.Server) error { return s.ListenAndServe() }
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		errc <- listen(srv)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("server: stopped")
	return nil
}
