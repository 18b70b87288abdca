// Package testhelpers provides utilities for testing t2sql-engine components.
package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestSecret is the HS256 secret used by GenerateTestJWT.
const TestSecret = "test-secret-key"

// GenerateTestJWT signs a token the way the engine's own issuer does, so it
// validates against an issuer built from TestSecret.
func GenerateTestJWT(t *testing.T, userID uuid.UUID, email string, admin bool) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   "t2sql-engine",
		"sub":   userID.String(),
		"email": email,
		"adm":   admin,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns the token with the "Bearer " prefix for an Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, userID uuid.UUID, email string, admin bool) string {
	return "Bearer " + GenerateTestJWT(t, userID, email, admin)
}
