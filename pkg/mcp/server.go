// Package mcp serves the text-to-SQL pipeline over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/mcp/tools"
)

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. hooks may be nil.
func NewServer(name, version string, logger *zap.Logger, hooks *server.Hooks) *Server {
	opts := []server.ServerOption{server.WithToolCapabilities(true)}
	if hooks != nil {
		opts = append(opts, server.WithHooks(hooks))
	}

	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTools registers the t2sql tools.
func (s *Server) RegisterTools(deps *tools.ToolDeps, version string) {
	tools.RegisterAll(s.mcp, deps, version)
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
// Stateless mode keeps the request context (and its claims) on every tool call.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
