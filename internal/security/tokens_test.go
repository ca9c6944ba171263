package security

import (
	"crypto/elliptic"
	"errors"
	"testing"
	"time"
)

func newPair(t *testing.T, priv, pub, issuer, audience string) (*Issuer, *Verifier) {
	t.Helper()
	signer, err := ParsePrivateKey(priv)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	iss, err := NewIssuer(signer, issuer, audience, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	key, err := ParsePublicKey(pub)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	ver, err := NewVerifier(key, issuer, audience)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return iss, ver
}

func TestIssueAndVerify(t *testing.T) {
	rsaPriv, rsaPub := rsaPEM(t)
	ecPriv, ecPub := ecPEM(t, elliptic.P256())

	for name, keys := range map[string][2]string{"rsa": {rsaPriv, rsaPub}, "ecdsa": {ecPriv, ecPub}} {
		t.Run(name, func(t *testing.T) {
			iss, ver := newPair(t, keys[0], keys[1], "boardling-auth", "boardling-api")
			token, exp, err := iss.Issue("user-1")
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if !exp.After(time.Now()) {
				t.Errorf("expiry %v in the past", exp)
			}
			id, err := ver.Verify(token)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if id.UserID != "user-1" || id.TokenID == "" {
				t.Errorf("identity = %+v", id)
			}
			if !id.ExpiresAt.Equal(exp.Truncate(time.Second)) {
				t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp.Truncate(time.Second))
			}
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	rsaPriv, rsaPub := rsaPEM(t)
	ecPriv, _ := ecPEM(t, elliptic.P256())

	iss, ver := newPair(t, rsaPriv, rsaPub, "boardling-auth", "boardling-api")
	otherAud, _ := newPair(t, rsaPriv, rsaPub, "boardling-auth", "someone-else")
	otherIss, _ := newPair(t, rsaPriv, rsaPub, "intruder", "boardling-api")

	ecSigner, err := ParsePrivateKey(ecPriv)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	ecIssuer, err := NewIssuer(ecSigner, "boardling-auth", "boardling-api", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	expired := *iss
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }

	mint := func(i *Issuer) string {
		tok, _, err := i.Issue("user-1")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return tok
	}

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong audience": mint(otherAud),
		"wrong issuer":   mint(otherIss),
		"wrong alg":      mint(ecIssuer),
		"expired":        mint(&expired),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ver.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify: want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	priv, pub := rsaPEM(t)
	iss, _ := newPair(t, priv, pub, "i", "a")
	if _, _, err := iss.Issue(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Issue(\"\"): want ErrInvalidToken, got %v", err)
	}
}

func TestNewVerifier_UnsupportedKey(t *testing.T) {
	if _, err := NewVerifier("not-a-key", "i", "a"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}
