package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/retry"
)

func fastRetry(n int) *retry.Config {
	return &retry.Config{MaxRetries: n, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestRetryingInvoker_RetriesTransientFailures(t *testing.T) {
	transient := &apperrors.GenerationError{Kind: apperrors.GenerationTransport, Retryable: true, Cause: errors.New("503")}
	next := &MockInvoker{
		Outputs: []string{"", "", "ok"},
		Errors:  []error{transient, transient, nil},
	}
	inv := NewRetryingInvoker(next, fastRetry(3), zap.NewNop())

	out, err := inv.Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, next.Calls)
}

func TestRetryingInvoker_StopsOnPermanentFailure(t *testing.T) {
	permanent := &apperrors.GenerationError{Kind: apperrors.GenerationTransport, Retryable: false, Cause: errors.New("401")}
	next := &MockInvoker{Errors: []error{permanent}}
	inv := NewRetryingInvoker(next, fastRetry(3), zap.NewNop())

	_, err := inv.Invoke(context.Background(), "p")
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, next.Calls)
}

func TestRetryingInvoker_ExhaustedKeepsTypedError(t *testing.T) {
	timeout := &apperrors.GenerationError{Kind: apperrors.GenerationTimeout, Retryable: true, Cause: context.DeadlineExceeded}
	next := &MockInvoker{Errors: []error{timeout}}
	inv := NewRetryingInvoker(next, fastRetry(2), zap.NewNop())

	_, err := inv.Invoke(context.Background(), "p")

	var genErr *apperrors.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, apperrors.GenerationTimeout, genErr.Kind)
	assert.Equal(t, 3, next.Calls)
}

func TestRetryingInvoker_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transient := &apperrors.GenerationError{Kind: apperrors.GenerationTransport, Retryable: true, Cause: errors.New("503")}
	next := &MockInvoker{Errors: []error{transient}}
	inv := NewRetryingInvoker(next, &retry.Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}, zap.NewNop())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := inv.Invoke(ctx, "p")

	var genErr *apperrors.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, apperrors.GenerationTransport, genErr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewInvoker_RetryOnlyWhenConfigured(t *testing.T) {
	mock := NewMockLLMClient()

	_, plain := NewInvoker(mock, InvokerOptions{Timeout: time.Second}, zap.NewNop()).(*GenerationInvoker)
	assert.True(t, plain)

	_, wrapped := NewInvoker(mock, InvokerOptions{Timeout: time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}, zap.NewNop()).(*RetryingInvoker)
	assert.True(t, wrapped)
}
