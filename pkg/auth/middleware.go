package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware. It is thin and
// delegates to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the token and sets claims and token in context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

// RequireSuperuser is RequireAuth plus the adm claim.
func (m *Middleware) RequireSuperuser(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := GetClaims(r.Context())
		if !claims.Admin {
			m.logger.Warn("Non-superuser attempted to access admin endpoint",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path))
			writeAuthError(w, http.StatusForbidden, "forbidden", "The user doesn't have enough privileges")
			return
		}
		next(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
