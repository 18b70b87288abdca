package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
	"github.com/ekaya-inc/t2sql-engine/pkg/metrics"
)

// Tool call outcomes recorded in logs and metrics.
const (
	toolOutcomeSuccess   = "success"
	toolOutcomeToolError = "tool_error"
	toolOutcomeError     = "error"
)

// ToolCallLogger logs one structured line per MCP tool call and counts it.
type ToolCallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolCallLogger creates a ToolCallLogger.
func NewToolCallLogger(logger *zap.Logger) *ToolCallLogger {
	return &ToolCallLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *ToolCallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *ToolCallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *ToolCallLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := toolOutcomeSuccess
	var fields []zap.Field

	if result != nil && result.IsError {
		outcome = toolOutcomeToolError
		if code := errorCode(result); code != "" {
			fields = append(fields, zap.String("code", code))
		}
	}
	a.finish(ctx, id, req, outcome, fields...)
}

func (a *ToolCallLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	a.finish(ctx, id, req, toolOutcomeError, zap.String("error", logging.SanitizeError(err)))
}

func (a *ToolCallLogger) finish(ctx context.Context, id any, req *mcplib.CallToolRequest, outcome string, extra ...zap.Field) {
	start, _ := a.loadAndDeleteStart(id)
	tool := req.Params.Name

	metrics.ObserveMCPToolCall(tool, outcome)

	fields := []zap.Field{
		zap.String("tool", tool),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	if claims, ok := auth.GetClaims(ctx); ok {
		fields = append(fields, zap.String("user_id", claims.Subject))
	}
	fields = append(fields, extra...)

	if outcome == toolOutcomeError {
		a.logger.Warn("MCP tool call failed", fields...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *ToolCallLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

// maxParamSize caps logged string parameters.
const maxParamSize = 2048

// sqlStringLiteralPattern matches SQL string literals, including '' escapes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

var sensitiveKeyParts = []string{"password", "secret", "token", "credential", "private_key", "api_key"}

// sanitizeParams prepares tool arguments for logging: sensitive keys are
// hashed, long strings truncated and SQL literals redacted. Questions are
// truncated to the usual log length.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if isSensitiveKey(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key, val string) string {
	if key == "question" {
		return logging.TruncateString(logging.Sanitize(val), logging.MaxQuestionLogLength)
	}
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = sqlStringLiteralPattern.ReplaceAllString(val, "'***'")
	}
	return val
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// hashSensitiveValue returns a short SHA-256 prefix so entries can be
// correlated without storing the value.
func hashSensitiveValue(value any) string {
	str, ok := value.(string)
	if !ok {
		str = fmt.Sprintf("%v", value)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// errorCode extracts the code from an error tool result.
func errorCode(result *mcplib.CallToolResult) string {
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var body struct {
			Code string `json:"code"`
		}
		if json.Unmarshal([]byte(tc.Text), &body) == nil {
			return body.Code
		}
	}
	return ""
}
