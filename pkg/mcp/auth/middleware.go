// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
)

// Middleware authenticates MCP requests. Unlike the general auth middleware,
// failures carry a WWW-Authenticate header instead of a JSON envelope.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the token and stores its claims in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		if _, err := claims.UserID(); err != nil {
			m.logger.Debug("MCP auth failed: token has no usable subject",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token does not identify a user")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
	})
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
