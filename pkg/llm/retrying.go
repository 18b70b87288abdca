package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/retry"
)

// RetryingInvoker retries transient generation failures with backoff.
type RetryingInvoker struct {
	next   Invoker
	cfg    *retry.Config
	logger *zap.Logger
}

// NewRetryingInvoker wraps next with the given retry policy.
func NewRetryingInvoker(next Invoker, cfg *retry.Config, logger *zap.Logger) *RetryingInvoker {
	return &RetryingInvoker{next: next, cfg: cfg, logger: logger.Named("retrying-invoker")}
}

// Invoke calls next until it succeeds, fails permanently or runs out of attempts.
func (r *RetryingInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	out, err := retry.DoWithResultIfRetryable(ctx, r.cfg, func() (string, error) {
		attempt++
		if attempt > 1 {
			r.logger.Info("Retrying model call", zap.Int("attempt", attempt))
		}
		return r.next.Invoke(ctx, prompt)
	})
	if err == nil {
		return out, nil
	}

	// Backoff interrupted by the caller's context: keep the typed error shape.
	var genErr *apperrors.GenerationError
	if !errors.As(err, &genErr) {
		kind := apperrors.GenerationTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = apperrors.GenerationTimeout
		}
		return "", &apperrors.GenerationError{Kind: kind, Cause: err}
	}
	return "", err
}

// NewInvoker builds the configured invocation chain: a GenerationInvoker,
// wrapped in a RetryingInvoker when maxRetries is positive.
func NewInvoker(client LLMClient, opts InvokerOptions, logger *zap.Logger) Invoker {
	var inv Invoker = NewGenerationInvoker(client, opts.Timeout, logger)
	if opts.MaxRetries > 0 {
		inv = NewRetryingInvoker(inv, retry.ForGeneration(opts.MaxRetries, opts.RetryBackoff), logger)
	}
	return inv
}
