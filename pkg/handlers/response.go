package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

// ApiResponse is the envelope every /api/v1 endpoint answers with.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error envelope and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeData wraps data in a success envelope.
func writeData(w http.ResponseWriter, logger *zap.Logger, statusCode int, data any) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// errorMapping is the status, code and caller-facing message for a service error.
type errorMapping struct {
	status  int
	code    string
	message string
}

// mapServiceError translates the error taxonomy into HTTP terms. Messages are
// sanitized because warehouse and provider errors can echo secrets.
func mapServiceError(err error) errorMapping {
	var (
		conflictErr *apperrors.ConflictError
		genErr      *apperrors.GenerationError
	)

	switch {
	case errors.Is(err, apperrors.ErrEmailTaken):
		return errorMapping{http.StatusBadRequest, "email_taken", "The user with this email already exists in the system"}
	case errors.Is(err, apperrors.ErrValidation):
		return errorMapping{http.StatusBadRequest, "validation_error", detail(err, apperrors.ErrValidation, "Invalid request")}
	case errors.Is(err, apperrors.ErrInactiveUser):
		return errorMapping{http.StatusBadRequest, "inactive_user", "Inactive user"}
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return errorMapping{http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password"}
	case errors.Is(err, apperrors.ErrNotFound):
		return errorMapping{http.StatusNotFound, "not_found", detail(err, apperrors.ErrNotFound, "Resource not found")}
	case errors.As(err, &conflictErr):
		return errorMapping{http.StatusConflict, "extraction_in_progress", conflictErr.Error()}
	case errors.Is(err, apperrors.ErrConflict):
		return errorMapping{http.StatusConflict, "conflict", "Resource already exists"}
	case errors.Is(err, apperrors.ErrPromptTooLarge):
		return errorMapping{http.StatusRequestEntityTooLarge, "prompt_too_large", "Schema and examples exceed the prompt size budget"}
	case errors.Is(err, apperrors.ErrCredential):
		return errorMapping{http.StatusUnprocessableEntity, "credential_error", logging.SanitizeError(err)}
	case errors.Is(err, apperrors.ErrCatalog):
		return errorMapping{http.StatusFailedDependency, "catalog_error", logging.SanitizeError(err)}
	case errors.Is(err, apperrors.ErrParse):
		return errorMapping{http.StatusInternalServerError, "model_output_invalid", logging.SanitizeError(err)}
	case errors.As(err, &genErr) && genErr.Kind == apperrors.GenerationTimeout:
		return errorMapping{http.StatusGatewayTimeout, "generation_timeout", "The language model did not answer in time"}
	case errors.As(err, &genErr):
		return errorMapping{http.StatusBadGateway, "generation_failed", "The language model request failed"}
	}
	return errorMapping{http.StatusInternalServerError, "internal_error", "Internal server error"}
}

// writeServiceError logs and writes err. Server-side failures log at error,
// caller mistakes at debug.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	m := mapServiceError(err)
	if m.status >= http.StatusInternalServerError {
		logger.Error(action, zap.String("code", m.code), logging.ErrorField(err))
	} else {
		logger.Debug(action, zap.String("code", m.code), logging.ErrorField(err))
	}
	writeError(w, logger, m.status, m.code, m.message)
}

// detail strips the sentinel prefix from a wrapped message, falling back when
// the error is the bare sentinel.
func detail(err, sentinel error, fallback string) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == sentinel.Error() {
		return fallback
	}
	return msg
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}
