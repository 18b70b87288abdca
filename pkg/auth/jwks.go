package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a token string and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// JWKSClient validates RS256 tokens from whitelisted external issuers using
// each issuer's JWKS endpoint.
type JWKSClient struct {
	endpoints map[string]keyfunc.Keyfunc
}

// NewJWKSClient fetches key sets for every issuer in endpoints (issuer -> JWKS URL).
// Fails if any endpoint cannot be loaded.
func NewJWKSClient(ctx context.Context, endpoints map[string]string) (*JWKSClient, error) {
	client := &JWKSClient{endpoints: make(map[string]keyfunc.Keyfunc, len(endpoints))}
	for issuer, jwksURL := range endpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}
	return client, nil
}

// Empty reports whether no external issuers are configured.
func (c *JWKSClient) Empty() bool {
	return c == nil || len(c.endpoints) == 0
}

// ValidateToken verifies the RSA signature with the issuer's keys.
func (c *JWKSClient) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}
		jwks, exists := c.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
		}
		return jwks.KeyfuncCtx(ctx)(token)
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

var _ TokenValidator = (*JWKSClient)(nil)
