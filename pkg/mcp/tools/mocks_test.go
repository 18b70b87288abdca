package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

type fakeScoper struct {
	err      error
	opened   int
	released int
	lastID   uuid.UUID
}

func (f *fakeScoper) WithOwnerScope(ctx context.Context, ownerID uuid.UUID) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.opened++
	f.lastID = ownerID
	return ctx, func() { f.released++ }, nil
}

type mockConnectionService struct {
	conns   []*models.Connection
	listErr error
}

func (m *mockConnectionService) Create(ctx context.Context, ownerID uuid.UUID, conn *models.Connection) (*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Connection, error) {
	for _, c := range m.conns {
		if c.ID == id && c.OwnerID == ownerID {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockConnectionService) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Connection, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Connection
	for _, c := range m.conns {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockConnectionService) Update(ctx context.Context, ownerID, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (m *mockConnectionService) Test(ctx context.Context, ownerID, id uuid.UUID) error {
	return nil
}

type mockExtractionService struct {
	snapshot  *models.SchemaSnapshot
	err       error
	lazyCalls int
}

func (m *mockExtractionService) Extract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.ExtractionResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockExtractionService) Get(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	return m.snapshot, m.err
}

func (m *mockExtractionService) GetOrExtract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	m.lazyCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

type mockGenerator struct {
	result  *models.GeneratedQuery
	err     error
	calls   int
	lastReq models.GenerateQueryRequest
}

func (m *mockGenerator) Generate(ctx context.Context, ownerID, connectionID uuid.UUID, req models.GenerateQueryRequest) (*models.GeneratedQuery, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type testEnv struct {
	server      *server.MCPServer
	scopes      *fakeScoper
	connections *mockConnectionService
	extraction  *mockExtractionService
	generator   *mockGenerator
	ownerID     uuid.UUID
}

func newTestEnv() *testEnv {
	env := &testEnv{
		server:      server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true)),
		scopes:      &fakeScoper{},
		connections: &mockConnectionService{},
		extraction:  &mockExtractionService{},
		generator:   &mockGenerator{},
		ownerID:     uuid.New(),
	}
	RegisterAll(env.server, &ToolDeps{
		Scopes:      env.scopes,
		Connections: env.connections,
		Extraction:  env.extraction,
		Generator:   env.generator,
		Logger:      zap.NewNop(),
	}, "1.2.3")
	return env
}

func (e *testEnv) ownerContext() context.Context {
	claims := &auth.Claims{}
	claims.Subject = e.ownerID.String()
	return auth.WithClaims(context.Background(), claims, "test-token")
}

type toolResponse struct {
	Result struct {
		Content []mcp.TextContent `json:"content"`
		IsError bool              `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool executes a tool via the server's HandleMessage method.
func callTool(t *testing.T, s *server.MCPServer, ctx context.Context, name string, args map[string]any) toolResponse {
	t.Helper()
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	result := s.HandleMessage(ctx, reqBytes)
	resultBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var resp toolResponse
	if err := json.Unmarshal(resultBytes, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

// decodeText unmarshals the first text content of a tool response into v.
func decodeText(t *testing.T, resp toolResponse, v any) {
	t.Helper()
	if len(resp.Result.Content) == 0 {
		t.Fatalf("expected content in response, got error %+v", resp.Error)
	}
	if err := json.Unmarshal([]byte(resp.Result.Content[0].Text), v); err != nil {
		t.Fatalf("failed to unmarshal tool text: %v", err)
	}
}
