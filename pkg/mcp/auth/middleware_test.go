package mcpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/testhelpers"
)

// mockAuthService is a mock implementation of auth.AuthService for testing.
type mockAuthService struct {
	claims      *auth.Claims
	token       string
	validateErr error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func TestRequireAuth_Success(t *testing.T) {
	userID := uuid.New()
	claims := &auth.Claims{}
	claims.Subject = userID.String()
	mw := NewMiddleware(&mockAuthService{claims: claims, token: "tok"}, zap.NewNop())

	var gotUser uuid.UUID
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotUser != userID {
		t.Errorf("expected user %s in context, got %s", userID, gotUser)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	mw := NewMiddleware(&mockAuthService{validateErr: errors.New("expired")}, zap.NewNop())

	called := false
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if called {
		t.Error("next handler should not be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	header := rec.Header().Get("WWW-Authenticate")
	if !strings.HasPrefix(header, `Bearer error="invalid_token"`) {
		t.Errorf("unexpected WWW-Authenticate header: %q", header)
	}
}

func TestRequireAuth_MissingSubject(t *testing.T) {
	mw := NewMiddleware(&mockAuthService{claims: &auth.Claims{}, token: "tok"}, zap.NewNop())

	called := false
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if called {
		t.Error("next handler should not be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_WithIssuedToken(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testhelpers.TestSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	mw := NewMiddleware(auth.NewAuthService(issuer, nil, nil, zap.NewNop()), zap.NewNop())

	userID := uuid.New()
	var gotUser uuid.UUID
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+testhelpers.GenerateTestJWT(t, userID, "ada@example.com", false))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotUser != userID {
		t.Errorf("expected user %s in context, got %s", userID, gotUser)
	}
}
