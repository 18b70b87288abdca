package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"credential", NewCredentialError("bigquery", "project_id is required"), ErrCredential},
		{"catalog", &CatalogError{Op: "list datasets", Cause: errors.New("boom")}, ErrCatalog},
		{"generation", &GenerationError{Kind: GenerationTimeout, Cause: errors.New("deadline")}, ErrGeneration},
		{"parse", Malformed("missing field %q", "sql_query"), ErrParse},
		{"conflict", &ConflictError{ConnectionID: uuid.New()}, ErrConflict},
		{"validation", Validation("question is required"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to do work: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestGenerationError_IsRetryable(t *testing.T) {
	err := &GenerationError{Kind: GenerationTransport, Retryable: true, Cause: errors.New("503")}
	assert.True(t, err.IsRetryable())

	err.Retryable = false
	assert.False(t, err.IsRetryable())
}

func TestCredentialError_UnwrapsCause(t *testing.T) {
	cause := errors.New("invalid_grant")
	err := &CredentialError{Kind: "bigquery", Reason: "authentication failed", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestParseError_Detail(t *testing.T) {
	err := Malformed("field %q must be a string", "explanation")

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ParseMalformed, parseErr.Kind)
	assert.Equal(t, `field "explanation" must be a string`, parseErr.Detail)
}
