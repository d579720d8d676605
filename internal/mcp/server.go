package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
)

// Sessions hands out schema sessions for a profile and database.
// *service.Workbench satisfies it.
type Sessions interface {
	Session(ctx context.Context, profile, database string) (*session.Session, error)
}

// ProfileLister lists stored connection profiles. *config.Store satisfies it.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]model.ConnectionProfile, error)
}

// MCPServer wraps the mcp-go server with schemer's tools and resources so
// AI agents can inspect tables and add, edit or drop columns.
type MCPServer struct {
	sessions Sessions
	profiles ProfileLister
	logger   *slog.Logger
	server   *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all schemer tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(sessions Sessions, profiles ProfileLister, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		sessions: sessions,
		profiles: profiles,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"schemer",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// schemer as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

// destructiveAnnotation marks tools that change the schema. DDL cannot be
// repeated safely, so they are never idempotent.
func destructiveAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
		IdempotentHint:  boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
