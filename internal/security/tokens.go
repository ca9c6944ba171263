package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed for another issuer or audience.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated requester behind an access token.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// Verifier validates access tokens signed with RS256 or ES256.
type Verifier struct {
	key    crypto.PublicKey
	parser *jwt.Parser
}

// NewVerifier returns a Verifier accepting only tokens whose algorithm matches pub and whose iss and aud match.
func NewVerifier(pub crypto.PublicKey, issuer, audience string) (*Verifier, error) {
	alg := KeyAlg(pub)
	if alg == "" {
		return nil, ErrInvalidKey
	}
	return &Verifier{
		key: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{alg}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify parses tokenString and returns the requester identity (sub claim).
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{UserID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issuer mints access tokens. The API never issues tokens itself; cmd/seed uses this for local accounts.
type Issuer struct {
	signer   crypto.Signer
	method   jwt.SigningMethod
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer returns an Issuer signing with signer (RSA or ECDSA P-256).
func NewIssuer(signer crypto.Signer, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	var method jwt.SigningMethod
	switch KeyAlg(signer.Public()) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{signer: signer, method: method, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed access token for userID and its expiry.
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	jti, err := newTokenID()
	if err != nil {
		return "", time.Time{}, err
	}
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.signer)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
