package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidCredentials     = errors.New("incorrect email or password")
	ErrInactiveUser           = errors.New("inactive user")
	ErrPromptTooLarge         = errors.New("prompt exceeds size budget")
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")

	// ErrCredential is matched by every *CredentialError.
	ErrCredential = errors.New("warehouse credential error")
	// ErrCatalog is matched by every *CatalogError.
	ErrCatalog = errors.New("warehouse catalog error")
	// ErrGeneration is matched by every *GenerationError.
	ErrGeneration = errors.New("sql generation error")
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("model output parse error")
)

// ErrEmailTaken is a validation failure with its own response code.
var ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrValidation)

// Validation wraps ErrValidation with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a caller-facing message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// CredentialError reports missing or unusable warehouse credentials.
type CredentialError struct {
	Kind   string
	Reason string
	Cause  error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("%s credentials: %s", e.Kind, e.Reason)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error { return e.Cause }

func (e *CredentialError) Is(target error) bool { return target == ErrCredential }

// NewCredentialError builds a CredentialError without an underlying cause.
func NewCredentialError(kind, reason string) *CredentialError {
	return &CredentialError{Kind: kind, Reason: reason}
}

// CatalogError is a top-level catalog enumeration failure. No snapshot can be built.
type CatalogError struct {
	Op    string
	Cause error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s failed: %v", e.Op, e.Cause)
}

func (e *CatalogError) Unwrap() error { return e.Cause }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalog }

// GenerationErrorKind classifies a failed model call.
type GenerationErrorKind string

const (
	GenerationTimeout   GenerationErrorKind = "timeout"
	GenerationTransport GenerationErrorKind = "transport"
)

// GenerationError is a model call that timed out or failed in transport.
type GenerationError struct {
	Kind      GenerationErrorKind
	Model     string
	Retryable bool
	Cause     error
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("generation %s (model=%s): %v", e.Kind, e.Model, e.Cause)
	}
	return fmt.Sprintf("generation %s: %v", e.Kind, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// IsRetryable lets pkg/retry decide without importing this package.
func (e *GenerationError) IsRetryable() bool { return e.Retryable }

// ParseErrorKind classifies rejected model output.
type ParseErrorKind string

const ParseMalformed ParseErrorKind = "malformed"

// ParseError is model output that does not satisfy the response schema.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model output %s: %s", e.Kind, e.Detail)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Malformed builds a ParseError of kind Malformed.
func Malformed(format string, args ...any) *ParseError {
	return &ParseError{Kind: ParseMalformed, Detail: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when an extraction is already running for a connection.
type ConflictError struct {
	ConnectionID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("extraction already in progress for connection %s", e.ConnectionID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
