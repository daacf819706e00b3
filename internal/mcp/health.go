package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

const healthTimeout = 3 * time.Second

// HealthChecker is implemented by every vector index backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint. It
// answers 503 when the index backend is unreachable.
func NewHealthHandler(index HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Create context with timeout for the backend check
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		// Prepare response, assuming healthy
		code, response := http.StatusOK, HealthResponse{Status: "healthy", Index: "connected"}

		// Check vector index health
		if err := index.Health(ctx); err != nil {
			code = http.StatusServiceUnavailable // 503
			response = HealthResponse{Status: "unhealthy", Index: "disconnected", Error: err.Error()}
		}
		response.Timestamp = time.Now().UTC().Format(time.RFC3339)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(response)
	}
}
