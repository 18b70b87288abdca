package llm

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey    contextKey = "llm_request_id"
	requestIDHeader            = "X-Request-Id"
)

// WithRequestID tags outgoing model calls made with ctx so provider-side logs
// can be matched to a generation.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id set by WithRequestID.
func RequestID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey).(uuid.UUID)
	return id, ok
}

// contextAwareTransport copies the request id from the request context into a header.
type contextAwareTransport struct {
	base http.RoundTripper
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id, ok := RequestID(req.Context()); ok {
		req = req.Clone(req.Context())
		req.Header.Set(requestIDHeader, id.String())
	}
	return t.base.RoundTrip(req)
}

func newHTTPClient() *http.Client {
	return &http.Client{Transport: &contextAwareTransport{base: http.DefaultTransport}}
}
