package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/bull/ragchain/internal/schema"
	"github.com/bull/ragchain/internal/storage"
)

// Searcher is the subset of the retriever used by Documents.
type Searcher interface {
	Retrieve(ctx context.Context, query string) ([]storage.Result, error)
}

// Documents lets the agent search the document index.
type Documents struct {
	Searcher Searcher
}

func (d *Documents) Name() string { return "SearchDocuments" }

func (d *Documents) Description() string {
	return "Useful for finding information in the ingested documents. Input is a search query."
}

func (d *Documents) Run(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("query is empty")
	}
	results, err := d.Searcher.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No matching documents.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (score %.3f", i+1, r.Score)
		if src, ok := r.Record.Metadata[schema.MetaSource]; ok {
			fmt.Fprintf(&b, ", source %v", src)
		}
		b.WriteString(")\n")
		b.WriteString(strings.TrimSpace(r.Record.Text))
	}
	return b.String(), nil
}
