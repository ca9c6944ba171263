package middleware

import (
	"context"
	"testing"
)

func TestWithRequester(t *testing.T) {
	ctx := WithRequester(context.Background(), "user-1", "jti-1")

	id, ok := RequesterID(ctx)
	if !ok || id != "user-1" {
		t.Errorf("RequesterID = %q, %v", id, ok)
	}
	jti, ok := TokenID(ctx)
	if !ok || jti != "jti-1" {
		t.Errorf("TokenID = %q, %v", jti, ok)
	}
}

func TestRequesterID_Missing(t *testing.T) {
	if id, ok := RequesterID(context.Background()); ok || id != "" {
		t.Errorf("RequesterID on empty context = %q, %v", id, ok)
	}
	if _, ok := RequesterID(WithRequester(context.Background(), "", "")); ok {
		t.Error("empty requester must not count as set")
	}
}
