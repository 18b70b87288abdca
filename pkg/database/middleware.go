package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
)

// WithOwnerContext sets up an owner-scoped DB connection for the request.
// It runs after auth middleware and uses the user id from the token subject.
// The connection is released after the handler returns.
func WithOwnerContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok {
				logger.Error("Missing claims in owner-scoped route")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing user context")
				return
			}

			ownerID, err := claims.UserID()
			if err != nil {
				logger.Error("Invalid user ID in claims",
					zap.String("subject", claims.Subject),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID format")
				return
			}

			scope, err := db.WithOwner(r.Context(), ownerID)
			if err != nil {
				logger.Error("Failed to acquire owner-scoped connection",
					zap.String("user_id", ownerID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetOwnerScope(r.Context(), scope)))
		}
	}
}

// WithUnscopedContext gives routes that run before a user is known (register,
// login) a connection without an owner.
func WithUnscopedContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.WithoutOwner(r.Context())
			if err != nil {
				logger.Error("Failed to acquire connection", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetOwnerScope(r.Context(), scope)))
		}
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
}
