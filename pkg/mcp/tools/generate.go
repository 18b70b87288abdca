package tools

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

type generateResult struct {
	SQLQuery    string `json:"sql_query"`
	Explanation string `json:"explanation"`
}

// RegisterGenerateTools registers generate_sql.
func RegisterGenerateTools(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"generate_sql",
		mcp.WithDescription(
			"Translate a natural-language question into a SQL query for a connection, grounded on its "+
				"extracted schema and saved use cases. The query is not executed. "+
				"Requires a schema: call get_schema first if the connection has never been extracted.",
		),
		mcp.WithString(
			"connection_id",
			mcp.Required(),
			mcp.Description("Connection id from list_connections"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer, in plain language"),
		),
		mcp.WithString(
			"use_case_id",
			mcp.Description("Optional use case id to restrict the worked examples to one"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connID, errResult := requireUUID(req, "connection_id")
		if errResult != nil {
			return errResult, nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", "question is required"), nil
		}

		genReq := models.GenerateQueryRequest{Question: question}
		if raw := trimString(req.GetString("use_case_id", "")); raw != "" {
			ucID, err := uuid.Parse(raw)
			if err != nil {
				return NewErrorResult("invalid_parameters", "use_case_id must be a UUID"), nil
			}
			genReq.UseCaseID = &ucID
		}

		ownerID, scopedCtx, cleanup, err := AcquireToolAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		generated, err := deps.Generator.Generate(scopedCtx, ownerID, connID, genReq)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			deps.Logger.Error("generate_sql failed", zap.String("connection_id", connID.String()), zap.Error(err))
			return nil, err
		}

		return jsonResult(generateResult{
			SQLQuery:    generated.SQLQuery,
			Explanation: generated.Explanation,
		})
	})
}

// RegisterAll registers every t2sql tool on s.
func RegisterAll(s *server.MCPServer, deps *ToolDeps, version string) {
	RegisterHealthTool(s, version)
	RegisterConnectionTools(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterGenerateTools(s, deps)
}
