package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

// SQLSystemMessage is sent with every generation call.
const SQLSystemMessage = "You are a careful SQL generation assistant. " +
	"You answer with exactly one JSON object that matches the requested schema and nothing else."

// GenerationInvoker makes one bounded, deterministic model call per prompt.
// It never retries; wrap it in a RetryingInvoker for that.
type GenerationInvoker struct {
	client  LLMClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerationInvoker creates an invoker. A zero timeout leaves the call
// bounded only by ctx.
func NewGenerationInvoker(client LLMClient, timeout time.Duration, logger *zap.Logger) *GenerationInvoker {
	return &GenerationInvoker{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("generation-invoker"),
	}
}

// Invoke returns the raw model text. Failures are *apperrors.GenerationError
// of kind Timeout when the deadline passed and Transport otherwise.
func (g *GenerationInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	callCtx := ctx
	cancel := func() {}
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	defer cancel()

	start := time.Now()
	result, err := g.client.GenerateResponse(callCtx, prompt, SQLSystemMessage, 0)
	elapsed := time.Since(start)

	if err != nil {
		genErr := g.wrap(ctx, callCtx, err)
		g.logger.Warn("Model call failed",
			zap.String("model", g.client.GetModel()),
			zap.String("kind", string(genErr.Kind)),
			zap.Bool("retryable", genErr.Retryable),
			zap.Duration("elapsed", elapsed),
			logging.ErrorField(err))
		return "", genErr
	}

	g.logger.Debug("Model call completed",
		zap.String("model", g.client.GetModel()),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Duration("elapsed", elapsed))

	return result.Content, nil
}

// wrap classifies a client error. A parent context that is already done makes
// the error permanent so a retry decorator stops.
func (g *GenerationInvoker) wrap(parent, call context.Context, err error) *apperrors.GenerationError {
	model := g.client.GetModel()
	parentDone := parent.Err() != nil

	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.GenerationError{
			Kind:      apperrors.GenerationTimeout,
			Model:     model,
			Retryable: !parentDone,
			Cause:     err,
		}
	}

	return &apperrors.GenerationError{
		Kind:      apperrors.GenerationTransport,
		Model:     model,
		Retryable: !parentDone && ClassifyError(err).Retryable,
		Cause:     err,
	}
}
