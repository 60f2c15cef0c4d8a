// Package auth guards the mutating company operations with HS256 bearer
// tokens, over HTTP and gRPC alike.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every token this package signs.
const Issuer = "company-directory-auth"

var (
	ErrNoToken      = errors.New("authorization header required")
	ErrMalformed    = errors.New("invalid authorization format")
	ErrInvalidToken = errors.New("invalid token")
)

// GenerateToken signs an HS256 token for userID valid for ttl.
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verifier checks bearer tokens signed with a shared secret. Only HS256
// tokens carrying an expiry are accepted.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		key: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses a raw token and returns its claims.
func (v *Verifier) Verify(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Authenticate verifies an Authorization header value and returns ctx
// carrying the token claims.
func (v *Verifier) Authenticate(ctx context.Context, header string) (context.Context, error) {
	if header == "" {
		return ctx, ErrNoToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return ctx, ErrMalformed
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, claimsKey{}, claims), nil
}

type claimsKey struct{}

// ClaimsFrom returns the claims of an authenticated request.
func ClaimsFrom(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// Subject is the "sub" claim of an authenticated request, or "".
func Subject(ctx context.Context) string {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
