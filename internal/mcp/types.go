// Package mcp exposes the retriever, the conversational chain and the agent
// as Model Context Protocol tools.
package mcp

// SearchIndexInput defines the input parameters for the search_index tool.
type SearchIndexInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"the semantic search query"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"maximum number of chunks to return (default 3, at most 20)"`
	// MinScore drops results below this cosine similarity.
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum similarity score in [-1, 1]"`
}

// SearchIndexOutput contains the search results.
type SearchIndexOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is a single indexed chunk.
type SearchResult struct {
	Text     string         `json:"text"`
	Source   string         `json:"source,omitempty"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// AskOutput is the chain's answer.
type AskOutput struct {
	Answer string `json:"answer"`
	// Question is the standalone question used for retrieval.
	Question string         `json:"question"`
	Sources  []SearchResult `json:"sources,omitempty"`
}

// RunAgentInput defines the input parameters for the run_agent tool.
type RunAgentInput struct {
	Input string `json:"input" jsonschema:"the task for the agent"`
}

// AgentStep is one tool call made by the agent.
type AgentStep struct {
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Observation string `json:"observation"`
}

// RunAgentOutput is the agent's final answer and the steps it took.
type RunAgentOutput struct {
	Output     string      `json:"output"`
	Steps      []AgentStep `json:"steps"`
	Iterations int         `json:"iterations"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// StatusOutput reports the collection size and backend health.
type StatusOutput struct {
	Collection  string `json:"collection"`
	TotalChunks int    `json:"total_chunks"`
	Healthy     bool   `json:"healthy"`
	Error       string `json:"error,omitempty"`
}
