package mcp

import (
	"html/template"
	"net/http"
)

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ragchain MCP server</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; }
  .card { max-width: 640px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2rem; margin-top: 3rem; }
  h1 { font-size: 1.6rem; margin: 0 0 1rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin: 1.5rem 0 0.5rem; }
  a, .endpoint { color: #38bdf8; font-family: "SF Mono", Menlo, monospace; }
  dt { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
  dd { margin: 0 0 0.75rem; color: #94a3b8; }
</style>
</head>
<body>
<div class="card">
  <h1>ragchain MCP server</h1>
  <div class="section-title">Endpoints</div>
  <p><a href="/mcp">/mcp</a> MCP Streamable HTTP</p>
  <p><a href="/health">/health</a> Health check</p>
  <div class="section-title">Tools</div>
  <dl>
  {{- range .}}
    <dt>{{.Name}}</dt>
    <dd>{{.Description}}</dd>
  {{- end}}
  </dl>
</div>
</body>
</html>
`))

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(tools []ToolInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingPage.Execute(w, tools)
	}
}
