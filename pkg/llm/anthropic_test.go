package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnthropicClient(t *testing.T, status int, body string, captured *map[string]any) *AnthropicClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			*captured = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewAnthropicClient(&Config{Endpoint: server.URL, Model: "claude-sonnet-4-5", APIKey: "sk-ant-test"}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var request map[string]any
	client := newTestAnthropicClient(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "{\"sql_query\":\"SELECT 1\",\"explanation\":\"one\"}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`, &request)

	result, err := client.GenerateResponse(context.Background(), "question", "system", 0)
	require.NoError(t, err)

	assert.Equal(t, `{"sql_query":"SELECT 1","explanation":"one"}`, result.Content)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 7, result.CompletionTokens)
	assert.Equal(t, 19, result.TotalTokens)

	assert.Equal(t, "system", request["system"])
	assert.Equal(t, float64(defaultAnthropicMaxTokens), request["max_tokens"])
	temperature, ok := request["temperature"]
	require.True(t, ok, "zero temperature must be sent explicitly")
	assert.Equal(t, float64(0), temperature)
}

func TestAnthropicClient_NoTextBlock(t *testing.T) {
	client := newTestAnthropicClient(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "content": [],
		"usage": {"input_tokens": 1, "output_tokens": 0}
	}`, nil)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicClient_AuthError(t *testing.T) {
	client := newTestAnthropicClient(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, nil)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.False(t, IsRetryable(err))
}

func TestNewAnthropicClient_Validation(t *testing.T) {
	_, err := NewAnthropicClient(&Config{APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewAnthropicClient(&Config{Model: "claude"}, zap.NewNop())
	assert.Error(t, err)

	client, err := NewAnthropicClient(&Config{Model: "claude", APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicEndpoint, client.GetEndpoint())
}
