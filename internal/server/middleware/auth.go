package middleware

import (
	"net/http"
	"strings"

	"github.com/soyaya/boardling-sub008/internal/security"
)

const bearerPrefix = "bearer "

// TokenVerifier validates an access token and returns the identity it was issued to.
type TokenVerifier interface {
	Verify(token string) (security.Identity, error)
}

// Authenticate rejects requests without a valid Bearer access token with 401 and stores the
// token subject as the requester for downstream handlers.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), id.UserID, id.TokenID)))
		})
	}
}

// RequesterKey keys rate limiting by authenticated requester, falling back to the client address.
func RequesterKey(r *http.Request) string {
	if id, ok := RequesterID(r.Context()); ok {
		return "user:" + id
	}
	return "addr:" + r.RemoteAddr
}

// extractBearer returns the token of an "Authorization: Bearer <token>" value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="boardling"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"missing or invalid authorization"}`))
}
