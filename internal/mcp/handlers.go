package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/ragchain/internal/agent"
	"github.com/bull/ragchain/internal/chain"
	"github.com/bull/ragchain/internal/schema"
	"github.com/bull/ragchain/internal/storage"
)

const (
	defaultMaxResults = 3
	maxMaxResults     = 20
)

// Searcher queries the index.
type Searcher interface {
	RetrieveK(ctx context.Context, query string, k int) ([]storage.Result, error)
}

// Asker answers a question with retrieved context.
type Asker interface {
	Invoke(ctx context.Context, question string) (*chain.Result, error)
}

// Runner runs an agent task.
type Runner interface {
	Invoke(ctx context.Context, input string) (*agent.Result, error)
}

// IndexStatus reports on the vector index.
type IndexStatus interface {
	HealthChecker
	Count(ctx context.Context, collection string) (int, error)
}

func toSearchResults(results []storage.Result) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		source, _ := r.Record.Metadata[schema.MetaSource].(string)
		out = append(out, SearchResult{
			Text:     r.Record.Text,
			Source:   source,
			Score:    r.Score,
			Metadata: r.Record.Metadata,
		})
	}
	return out
}

// makeSearchHandler creates the search_index tool handler.
func makeSearchHandler(searcher Searcher) mcp.ToolHandlerFor[SearchIndexInput, SearchIndexOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchIndexInput) (
		*mcp.CallToolResult, SearchIndexOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxMaxResults)

		results, err := searcher.RetrieveK(ctx, input.Query, maxResults)
		if err != nil {
			return nil, SearchIndexOutput{}, fmt.Errorf("search failed: %w", err)
		}

		kept := make([]storage.Result, 0, len(results))
		for _, r := range results {
			if input.MinScore != 0 && r.Score < input.MinScore {
				continue
			}
			kept = append(kept, r)
		}

		if len(kept) == 0 {
			return nil, SearchIndexOutput{
				Results: []SearchResult{},
				Message: "No matching chunks found. Try broader search terms.",
			}, nil
		}
		return nil, SearchIndexOutput{Results: toSearchResults(kept)}, nil
	}
}

// makeAskHandler creates the ask tool handler.
func makeAskHandler(asker Asker) mcp.ToolHandlerFor[AskInput, AskOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		res, err := asker.Invoke(ctx, input.Question)
		if err != nil {
			return nil, AskOutput{}, err
		}
		out := AskOutput{Answer: res.Answer, Question: res.Question}
		if len(res.Sources) > 0 {
			out.Sources = toSearchResults(res.Sources)
		}
		return nil, out, nil
	}
}

// makeAgentHandler creates the run_agent tool handler.
func makeAgentHandler(runner Runner) mcp.ToolHandlerFor[RunAgentInput, RunAgentOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RunAgentInput) (
		*mcp.CallToolResult, RunAgentOutput, error,
	) {
		res, err := runner.Invoke(ctx, input.Input)
		if err != nil {
			return nil, RunAgentOutput{}, err
		}
		steps := make([]AgentStep, 0, len(res.Transcript))
		for _, entry := range res.Transcript {
			steps = append(steps, AgentStep{
				Thought:     entry.Step.Thought,
				Action:      entry.Step.Action,
				ActionInput: entry.Step.ActionInput,
				Observation: entry.Observation,
			})
		}
		return nil, RunAgentOutput{Output: res.Output, Steps: steps, Iterations: res.Iterations}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler. Backend
// failures are reported in the output rather than as tool errors.
func makeStatusHandler(index IndexStatus, collection string) mcp.ToolHandlerFor[StatusInput, StatusOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		out := StatusOutput{Collection: collection}
		if err := index.Health(ctx); err != nil {
			out.Error = err.Error()
			return nil, out, nil
		}
		out.Healthy = true

		n, err := index.Count(ctx, collection)
		if err != nil {
			out.Error = err.Error()
			return nil, out, nil
		}
		out.TotalChunks = n
		return nil, out, nil
	}
}
