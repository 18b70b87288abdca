package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/config"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// InvokerOptions bounds and retries generation calls.
type InvokerOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// InvokerOptionsFrom reads the invoker settings from the llm config section.
func InvokerOptionsFrom(cfg *config.LLMConfig) InvokerOptions {
	return InvokerOptions{
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
}

// NewClientFromConfig creates the client for the configured provider.
// Returns LLMClient interface to enable dependency injection of mocks.
func NewClientFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey(),
		MaxTokens: cfg.MaxTokens,
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		client, err := NewClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
