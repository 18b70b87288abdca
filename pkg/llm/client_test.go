package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOpenAI serves /chat/completions and records the last request.
type fakeOpenAI struct {
	status    int
	body      string
	request   map[string]any
	requestID string
}

func (f *fakeOpenAI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		f.requestID = r.Header.Get(requestIDHeader)
		f.request = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&f.request)

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.body))
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestClient(t *testing.T, fake *fakeOpenAI) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{Endpoint: server.URL + "/v1/", Model: "gpt-4", APIKey: "sk-test"}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestClient_GenerateResponse(t *testing.T) {
	fake := &fakeOpenAI{body: completionBody(`{"sql_query":"SELECT 1","explanation":"one"}`)}
	client := newTestClient(t, fake)

	id := uuid.New()
	result, err := client.GenerateResponse(WithRequestID(context.Background(), id), "question", "system", 0)
	require.NoError(t, err)

	assert.Equal(t, `{"sql_query":"SELECT 1","explanation":"one"}`, result.Content)
	assert.Equal(t, 10, result.PromptTokens)
	assert.Equal(t, 5, result.CompletionTokens)
	assert.Equal(t, 15, result.TotalTokens)
	assert.Equal(t, id.String(), fake.requestID)

	assert.Equal(t, "gpt-4", fake.request["model"])
	temperature, ok := fake.request["temperature"].(float64)
	require.True(t, ok, "temperature must be sent even when zero")
	assert.InDelta(t, 0, temperature, 1e-6)

	format, ok := fake.request["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])

	messages := fake.request["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "question", messages[1].(map[string]any)["content"])
}

func TestClient_NoRequestIDWithoutContextValue(t *testing.T) {
	fake := &fakeOpenAI{body: completionBody("{}")}
	client := newTestClient(t, fake)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)
	assert.Empty(t, fake.requestID)
}

func TestClient_EmptyChoices(t *testing.T) {
	fake := &fakeOpenAI{body: `{"id":"x","object":"chat.completion","choices":[],"usage":{}}`}
	client := newTestClient(t, fake)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_RateLimitIsRetryable(t *testing.T) {
	fake := &fakeOpenAI{
		status: http.StatusTooManyRequests,
		body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
	}
	client := newTestClient(t, fake)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeRateLimit, GetErrorType(err))

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 429, llmErr.StatusCode)
	assert.Equal(t, "gpt-4", llmErr.Model)
}

func TestClient_AuthFailureIsPermanent(t *testing.T) {
	fake := &fakeOpenAI{
		status: http.StatusUnauthorized,
		body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
	}
	client := newTestClient(t, fake)

	_, err := client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(&Config{Endpoint: "http://localhost"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	client, err := NewClient(&Config{Model: "gpt-4"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", client.GetEndpoint())
	assert.Equal(t, "gpt-4", client.GetModel())
}
