// Package metadata asks a language model for a short summary and the key
// entities of a document at ingestion time.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/ragchain/internal/llm"
)

// DefaultMaxTokens is the maximum content length before truncation (in tokens).
const DefaultMaxTokens = 16000

// DocumentMetadata contains LLM-generated metadata for a document.
type DocumentMetadata struct {
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
}

// Generator produces document metadata with a language model.
type Generator struct {
	model     llm.Model
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a metadata generator. maxTokens <= 0 uses
// DefaultMaxTokens.
func NewGenerator(model llm.Model, maxTokens int, logger *slog.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, maxTokens: maxTokens, logger: logger}
}

// GenerateMetadata analyzes document content and produces a summary and entity list.
func (g *Generator) GenerateMetadata(ctx context.Context, source, content string) (*DocumentMetadata, error) {
	truncated := g.truncateContent(source, content)

	prompt := fmt.Sprintf(`Analyze this document and provide:
1. A concise summary (1-2 sentences) capturing the main topic and key points
2. A list of the key names, concepts or terms it mentions

Document source: %s

Document content:
%s

Respond with JSON only, in this format:
{"summary": "Brief description of what this document covers", "entities": ["Entity1", "Entity2"]}`, source, truncated)

	resp, err := g.model.Generate(ctx, llm.Prompt(prompt), llm.Options{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("generate metadata: %w", err)
	}

	meta, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// parseResponse reads the JSON object in resp, tolerating a surrounding
// code fence or prose.
func parseResponse(resp string) (*DocumentMetadata, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("parse response: no JSON object in %q", resp)
	}

	var meta DocumentMetadata
	if err := json.Unmarshal([]byte(resp[start:end+1]), &meta); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if meta.Entities == nil {
		meta.Entities = []string{}
	}
	return &meta, nil
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(source, content string) string {
	maxChars := g.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	g.logger.Warn("truncating document for metadata generation",
		"source", source, "chars", len(content), "max_chars", maxChars)

	return content[:maxChars]
}
