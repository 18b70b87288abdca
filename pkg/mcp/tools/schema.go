package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

type schemaResult struct {
	ConnectionID    string                 `json:"connection_id"`
	ExtractedAt     string                 `json:"extracted_at"`
	TableCount      int                    `json:"table_count"`
	SkippedDatasets int                    `json:"skipped_datasets"`
	SkippedTables   int                    `json:"skipped_tables"`
	Datasets        []models.SchemaDataset `json:"datasets,omitempty"`
	Relationships   []models.Relationship  `json:"relationships,omitempty"`
	Text            string                 `json:"text,omitempty"`
}

// RegisterSchemaTools registers get_schema.
func RegisterSchemaTools(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(
			"Get the extracted schema (datasets, tables, columns, relationships) for a connection. "+
				"The schema is extracted on first use. Use format=text for a compact listing.",
		),
		mcp.WithString(
			"connection_id",
			mcp.Required(),
			mcp.Description("Connection id from list_connections"),
		),
		mcp.WithString(
			"format",
			mcp.Description("json (default) or text"),
			mcp.Enum("json", "text"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connID, errResult := requireUUID(req, "connection_id")
		if errResult != nil {
			return errResult, nil
		}
		format := trimString(req.GetString("format", "json"))
		if format != "json" && format != "text" {
			return NewErrorResult("invalid_parameters", "format must be json or text"), nil
		}

		ownerID, scopedCtx, cleanup, err := AcquireToolAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		snapshot, err := deps.Extraction.GetOrExtract(scopedCtx, ownerID, connID)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			deps.Logger.Error("get_schema failed", zap.String("connection_id", connID.String()), zap.Error(err))
			return nil, err
		}

		result := schemaResult{
			ConnectionID:    snapshot.ConnectionID.String(),
			ExtractedAt:     snapshot.ExtractedAt.UTC().Format(time.RFC3339),
			TableCount:      snapshot.TableCount(),
			SkippedDatasets: snapshot.SkippedDatasets,
			SkippedTables:   snapshot.SkippedTables,
		}
		if format == "text" {
			result.Text = formatSchemaText(snapshot)
		} else {
			result.Datasets = snapshot.Datasets
			result.Relationships = snapshot.Relationships
		}
		return jsonResult(result)
	})
}

// formatSchemaText renders one line per table: dataset.table(col TYPE, ...).
func formatSchemaText(s *models.SchemaSnapshot) string {
	var b strings.Builder
	for _, ds := range s.Datasets {
		for _, t := range ds.Tables {
			cols := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				cols = append(cols, c.Name+" "+c.Type)
			}
			fmt.Fprintf(&b, "%s.%s(%s)\n", ds.Name, t.Name, strings.Join(cols, ", "))
		}
	}
	for _, r := range s.Relationships {
		fmt.Fprintf(&b, "%s.%s.%s -> %s.%s.%s\n", r.FromDataset, r.FromTable, r.FromColumn, r.ToDataset, r.ToTable, r.ToColumn)
	}
	return b.String()
}
