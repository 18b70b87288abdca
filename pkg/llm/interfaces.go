// Package llm provides the language-model clients used for SQL generation
// and the invoker and parser that sit between them and the query service.
package llm

import (
	"context"
)

// GenerateResponseResult is one completed chat call.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient defines the interface for chat completion against one provider.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse generates a single chat completion.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Invoker runs one prompt and returns the raw model text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ Invoker   = (*GenerationInvoker)(nil)
	_ Invoker   = (*RetryingInvoker)(nil)
)
