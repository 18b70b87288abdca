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
)

func TestGenerationInvoker_Success(t *testing.T) {
	mock := NewMockLLMClient()
	mock.Content = `{"sql_query":"SELECT 1","explanation":"x"}`
	inv := NewGenerationInvoker(mock, time.Second, zap.NewNop())

	out, err := inv.Invoke(context.Background(), "prompt text")
	require.NoError(t, err)

	assert.Equal(t, mock.Content, out)
	assert.Equal(t, "prompt text", mock.LastPrompt)
	assert.Equal(t, SQLSystemMessage, mock.LastSystemMessage)
	assert.Equal(t, float64(0), mock.LastTemperature)
}

func TestGenerationInvoker_Timeout(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, _, _ string, _ float64) (*GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	inv := NewGenerationInvoker(mock, 20*time.Millisecond, zap.NewNop())

	_, err := inv.Invoke(context.Background(), "p")

	var genErr *apperrors.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, apperrors.GenerationTimeout, genErr.Kind)
	assert.Equal(t, "mock-model", genErr.Model)
	assert.True(t, genErr.Retryable)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
}

func TestGenerationInvoker_TransportRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", NewError(ErrorTypeEndpoint, "server error", true, nil), true},
		{"auth", NewError(ErrorTypeAuth, "authentication failed", false, nil), false},
		{"empty response", ErrEmptyResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockLLMClient()
			mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
				return nil, tt.err
			}
			inv := NewGenerationInvoker(mock, time.Second, zap.NewNop())

			_, err := inv.Invoke(context.Background(), "p")

			var genErr *apperrors.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, apperrors.GenerationTransport, genErr.Kind)
			assert.Equal(t, tt.retryable, genErr.Retryable)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestGenerationInvoker_CallerCancellationIsPermanent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		cancel()
		return nil, NewError(ErrorTypeEndpoint, "server error", true, context.Canceled)
	}
	inv := NewGenerationInvoker(mock, time.Second, zap.NewNop())

	_, err := inv.Invoke(ctx, "p")

	var genErr *apperrors.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.False(t, genErr.Retryable)
}
