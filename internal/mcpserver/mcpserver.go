// Package mcpserver exposes the self-call rewriter as MCP tools.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/thisifier/internal/service/qualify"
)

// Server wraps the MCP server and registers the thisifier tools.
type Server struct {
	server  *mcp.Server
	service *qualify.Service
}

// NewServer creates a new MCP server backed by svc. A nil svc uses a
// service built from the default configuration.
func NewServer(version string, svc *qualify.Service) *Server {
	if version == "" {
		version = "dev"
	}
	if svc == nil {
		svc = qualify.New()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "thisifier",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, service: svc}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Tool names, shared by registration and the registry manifest.
const (
	toolList    = "list_self_calls"
	toolQualify = "qualify_self_calls"
	toolExplain = "explain_self_calls"
)

// toolNames lists the registered tools in registration order.
var toolNames = []string{toolList, toolQualify, toolExplain}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolList,
		Description: describeList(),
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolQualify,
		Description: describeQualify(),
	}, s.handleQualify)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolExplain,
		Description: describeExplain(),
	}, s.handleExplain)
}
