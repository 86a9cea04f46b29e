// Package mcpserver exposes a canvas engine to agents as MCP tools.
package mcpserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/inamate/canvas/internal/engine"
)

// Server is the MCP server for one board. Tool handlers may run
// concurrently, so every engine call goes through mu.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger

	mu     sync.Mutex
	engine *engine.Engine
}

// New creates and configures an MCP server over e.
func New(e *engine.Engine, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine: e,
		log:    log.With("module", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"canvas-mcp",
		version,
		server.WithToolCapabilities(true),
	)

	s.mcp.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)
	s.registerElementTools()
	s.registerEdgeTools()
	s.registerBoardTools()
	return s
}

// MCP returns the underlying server for a transport to serve.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// withEngine runs fn with exclusive access to the engine.
func (s *Server) withEngine(fn func(e *engine.Engine) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
