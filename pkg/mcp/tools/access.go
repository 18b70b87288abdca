// Package tools provides the MCP tools for t2sql-engine.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/database"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// ToolAccessError is an actionable failure returned to the client as a tool
// result rather than a protocol error.
type ToolAccessError struct {
	Code      string
	Message   string
	MCPResult *mcp.CallToolResult
}

func (e *ToolAccessError) Error() string {
	return e.Message
}

// AsToolAccessResult returns the prepared result for a ToolAccessError, or nil.
func AsToolAccessResult(err error) *mcp.CallToolResult {
	var accessErr *ToolAccessError
	if errors.As(err, &accessErr) {
		return accessErr.MCPResult
	}
	return nil
}

func newToolAccessError(code, message string) *ToolAccessError {
	return &ToolAccessError{
		Code:      code,
		Message:   message,
		MCPResult: NewErrorResult(code, message),
	}
}

// OwnerScoper opens an owner-scoped database context.
// *database.OwnerScopeProvider satisfies it.
type OwnerScoper interface {
	WithOwnerScope(ctx context.Context, ownerID uuid.UUID) (context.Context, func(), error)
}

// ToolDeps are the services the MCP tools run against.
type ToolDeps struct {
	Scopes      OwnerScoper
	Connections services.ConnectionService
	Extraction  services.ExtractionService
	Generator   services.QueryGenerationService
	Logger      *zap.Logger
}

// AcquireToolAccess resolves the caller from the token claims and returns an
// owner-scoped context. cleanup must be called when the tool is done.
func AcquireToolAccess(ctx context.Context, deps *ToolDeps) (uuid.UUID, context.Context, func(), error) {
	claims, ok := auth.GetClaims(ctx)
	if !ok {
		return uuid.Nil, nil, nil, newToolAccessError("authentication_required", "authentication required")
	}

	ownerID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, nil, nil, newToolAccessError("invalid_token", err.Error())
	}

	if _, scoped := database.GetOwnerScope(ctx); scoped {
		return ownerID, ctx, func() {}, nil
	}

	scopedCtx, cleanup, err := deps.Scopes.WithOwnerScope(ctx, ownerID)
	if err != nil {
		return uuid.Nil, nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return ownerID, scopedCtx, cleanup, nil
}
