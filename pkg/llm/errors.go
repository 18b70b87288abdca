package llm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType names the broad cause of a failed model call.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Model      string    // Model name if known
	Endpoint   string    // Endpoint URL if known; only the host is printed
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", host))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
// OpenAI API errors are classified by status code; everything else, including
// Anthropic errors, by message.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if status := openAIStatus(err); status > 0 {
		classified := classifyStatus(status, err)
		classified.StatusCode = status
		return classified
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	var classified *Error
	switch {
	case statusCode == 401 || statusCode == 403 || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication_error") ||
		strings.Contains(lower, "permission_error"):
		classified = NewError(ErrorTypeAuth, "authentication failed", false, err)

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist") || strings.Contains(lower, "not_found_error")):
		classified = NewError(ErrorTypeModel, "model not found", false, err)

	case statusCode == 404:
		classified = NewError(ErrorTypeEndpoint, "endpoint not found", false, err)

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		classified = NewError(ErrorTypeEndpoint, "connection failed", true, err)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		classified = NewError(ErrorTypeEndpoint, "request timeout", true, err)

	case statusCode == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit_error"):
		classified = NewError(ErrorTypeRateLimit, "rate limited", true, err)

	case statusCode == 529 || strings.Contains(lower, "overloaded"):
		classified = NewError(ErrorTypeEndpoint, "provider overloaded", true, err)

	case statusCode >= 500:
		classified = NewError(ErrorTypeEndpoint, "server error", true, err)

	default:
		classified = NewError(ErrorTypeUnknown, "llm error", false, err)
	}
	classified.StatusCode = statusCode
	return classified
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(status int, err error) *Error {
	switch {
	case status == 401 || status == 403:
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == 404:
		if strings.Contains(strings.ToLower(err.Error()), "model") {
			return NewError(ErrorTypeModel, "model not found", false, err)
		}
		return NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
	case status == 429:
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		return NewError(ErrorTypeEndpoint, "server error", true, err)
	}
	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

// IsRetryable returns true if the error is a retryable *Error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
