package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	tools  []ToolInfo
}

// ToolInfo names a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Config holds server dependencies. Asker and Runner are optional; their
// tools are registered only when set.
type Config struct {
	Name       string
	Version    string
	Collection string
	Searcher   Searcher
	Index      IndexStatus
	Asker      Asker
	Runner     Runner
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	name := cfg.Name
	if name == "" {
		name = "ragchain"
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}

	s := &Server{server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)}

	addTool(s, &mcp.Tool{
		Name:        "search_index",
		Description: "Semantic search over the indexed documents. Returns the most similar chunks with their source and score.",
	}, makeSearchHandler(cfg.Searcher))

	addTool(s, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report the number of indexed chunks and whether the vector store is reachable.",
	}, makeStatusHandler(cfg.Index, cfg.Collection))

	if cfg.Asker != nil {
		addTool(s, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the indexed documents. Follow-up questions use the conversation so far.",
		}, makeAskHandler(cfg.Asker))
	}

	if cfg.Runner != nil {
		addTool(s, &mcp.Tool{
			Name:        "run_agent",
			Description: "Run a tool-using agent on a task and return its final answer and the steps it took.",
		}, makeAgentHandler(cfg.Runner))
	}

	return s
}

func addTool[In, Out any](s *Server, t *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) {
	mcp.AddTool(s.server, t, h)
	s.tools = append(s.tools, ToolInfo{Name: t.Name, Description: t.Description})
}

// Tools lists the registered tools in registration order.
func (s *Server) Tools() []ToolInfo {
	return append([]ToolInfo(nil), s.tools...)
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
