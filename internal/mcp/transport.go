package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves the MCP server over Streamable HTTP. Stateless
// servers keep no session and cannot send requests back to the client.
func NewHTTPHandler(server *Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}

// NewMux routes /mcp, /health and the landing page.
func NewMux(server *Server, index HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", NewHTTPHandler(server, false))
	mux.HandleFunc("/health", NewHealthHandler(index))
	mux.HandleFunc("/", NewLandingHandler(server.Tools()))
	return mux
}
