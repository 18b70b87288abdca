package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type connectionSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ConnectionType string `json:"connection_type"`
	DatabaseName   string `json:"database_name,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	Dataset        string `json:"dataset,omitempty"`
	HasCredentials bool   `json:"has_credentials"`
}

type listConnectionsResult struct {
	Connections []connectionSummary `json:"connections"`
	Count       int                 `json:"count"`
}

// RegisterConnectionTools registers list_connections.
func RegisterConnectionTools(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"list_connections",
		mcp.WithDescription(
			"List the warehouse connections you own. Use the returned id as connection_id "+
				"for get_schema and generate_sql.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, scopedCtx, cleanup, err := AcquireToolAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		conns, err := deps.Connections.List(scopedCtx, ownerID)
		if err != nil {
			deps.Logger.Error("list_connections failed", zap.String("owner_id", ownerID.String()), zap.Error(err))
			return nil, err
		}

		result := listConnectionsResult{Connections: make([]connectionSummary, 0, len(conns))}
		for _, c := range conns {
			result.Connections = append(result.Connections, connectionSummary{
				ID:             c.ID.String(),
				Name:           c.Name,
				ConnectionType: c.Kind,
				DatabaseName:   c.DatabaseName,
				ProjectID:      c.ProjectID,
				Dataset:        c.Dataset,
				HasCredentials: c.HasCredentials(),
			})
		}
		result.Count = len(result.Connections)
		return jsonResult(result)
	})
}
