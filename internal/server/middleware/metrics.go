package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestRecorder records one served request (e.g. *otel.Instruments).
type RequestRecorder interface {
	RecordRequest(ctx context.Context, method, route string, status int, ms float64)
}

// Metrics records method, matched route pattern, status and latency of every request.
// Unmatched paths are recorded under the route "unmatched" to keep cardinality bounded.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.RecordRequest(r.Context(), r.Method, route, status, float64(time.Since(start).Microseconds())/1000)
		})
	}
}
