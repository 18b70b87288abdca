package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireUUID reads a required UUID argument. A missing or malformed value
// is returned as an error result.
func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", fmt.Sprintf("%s is required", name))
	}
	id, err := uuid.Parse(trimString(raw))
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
