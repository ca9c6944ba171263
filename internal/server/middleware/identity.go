// Package middleware holds the HTTP middleware shared by every API route: bearer authentication,
// requester identity in the request context, and request metrics.
package middleware

import "context"

type contextKey struct{ name string }

var (
	requesterIDKey = contextKey{"requester_id"}
	tokenIDKey     = contextKey{"token_id"}
)

// WithRequester returns a context carrying the authenticated requester and the id of the token they presented.
func WithRequester(ctx context.Context, requesterID, tokenID string) context.Context {
	ctx = context.WithValue(ctx, requesterIDKey, requesterID)
	return context.WithValue(ctx, tokenIDKey, tokenID)
}

// RequesterID returns the authenticated requester and true if set; otherwise "", false.
func RequesterID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requesterIDKey).(string)
	return v, ok && v != ""
}

// TokenID returns the jti of the presented access token and true if set.
func TokenID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	return v, ok && v != ""
}
