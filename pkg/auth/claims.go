// Package auth issues and validates access tokens for t2sql-engine.
// Tokens are HS256-signed by this service; RS256 tokens from configured
// external issuers are accepted through their JWKS endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	// ClaimsKey is the context key for validated token claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for the raw token string.
	TokenKey contextKey = "token"
)

// ErrNoClaims is returned when a request context carries no authenticated user.
var ErrNoClaims = errors.New("authentication required: no claims in context")

// Claims is the access token payload. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Admin bool   `json:"adm,omitempty"`
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	if c.Subject == "" {
		return uuid.Nil, errors.New("missing user ID in token claims")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID format: %w", err)
	}
	return id, nil
}

// GetClaims retrieves claims from the request context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// GetToken retrieves the raw token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims stores claims and the raw token in ctx.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

// UserIDFromContext returns the authenticated user's id.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return uuid.Nil, ErrNoClaims
	}
	return claims.UserID()
}
