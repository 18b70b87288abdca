package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

// ErrorResponse is the JSON body of an error tool result.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result carrying a structured error. Use it for
// failures the model can act on (bad arguments, unknown connection). System
// failures are returned as Go errors instead.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// serviceErrorResult converts a service error the caller can act on into a
// tool result. It returns nil for internal failures.
func serviceErrorResult(err error) *mcp.CallToolResult {
	var (
		conflictErr *apperrors.ConflictError
		genErr      *apperrors.GenerationError
	)

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return NewErrorResult("validation_error", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", logging.SanitizeError(err))
	case errors.As(err, &conflictErr):
		return NewErrorResult("extraction_in_progress", conflictErr.Error())
	case errors.Is(err, apperrors.ErrPromptTooLarge):
		return NewErrorResult("prompt_too_large", "schema and examples exceed the prompt size budget")
	case errors.Is(err, apperrors.ErrCredential):
		return NewErrorResult("credential_error", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrCatalog):
		return NewErrorResult("catalog_error", logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrParse):
		return NewErrorResult("model_output_invalid", logging.SanitizeError(err))
	case errors.As(err, &genErr) && genErr.Kind == apperrors.GenerationTimeout:
		return NewErrorResult("generation_timeout", "the language model did not answer in time")
	case errors.As(err, &genErr):
		return NewErrorResult("generation_failed", "the language model request failed")
	}
	return nil
}
