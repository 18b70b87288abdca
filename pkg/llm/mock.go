package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns Content and nil error.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// Content is returned by the default GenerateResponse.
	Content string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	mu                    sync.Mutex
	GenerateResponseCalls int
	LastPrompt            string
	LastSystemMessage     string
	LastTemperature       float64
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	m.mu.Lock()
	m.GenerateResponseCalls++
	m.LastPrompt = prompt
	m.LastSystemMessage = systemMessage
	m.LastTemperature = temperature
	m.mu.Unlock()

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return &GenerateResponseResult{Content: m.Content}, nil
}

// Calls returns the number of GenerateResponse calls so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateResponseCalls
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

var _ LLMClient = (*MockLLMClient)(nil)

// MockInvoker returns canned output or errors in order. Once the queue is
// drained the last entry repeats.
type MockInvoker struct {
	Outputs []string
	Errors  []error

	mu      sync.Mutex
	Calls   int
	Prompts []string
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.Calls
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)

	var out string
	var err error
	if len(m.Outputs) > 0 {
		out = m.Outputs[min(i, len(m.Outputs)-1)]
	}
	if len(m.Errors) > 0 {
		err = m.Errors[min(i, len(m.Errors)-1)]
	}
	return out, err
}

var _ Invoker = (*MockInvoker)(nil)
