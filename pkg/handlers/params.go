package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
)

// OwnerMiddleware attaches an owner-scoped database connection to the request.
type OwnerMiddleware func(http.HandlerFunc) http.HandlerFunc

// ParseConnectionID extracts and validates the connection ID from the request path.
// Expects path parameter: id
func ParseConnectionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_connection_id", "Invalid connection ID format", logger)
}

// ParseUseCaseID extracts and validates the use case ID from the request path.
// Expects path parameter: ucid
func ParseUseCaseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "ucid", "invalid_use_case_id", "Invalid use case ID format", logger)
}

// requireOwner returns the authenticated user's id. Routes are wrapped in
// RequireAuth, so a failure here is a wiring bug.
func requireOwner(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	ownerID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		logger.Error("No user in request context", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, logger, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
		return uuid.Nil, false
	}
	return ownerID, true
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, errorCode, errorMessage)
		return uuid.Nil, false
	}
	return id, true
}
