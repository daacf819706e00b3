package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragchain/internal/chunker"
	"github.com/bull/ragchain/internal/llm/llmtest"
	"github.com/bull/ragchain/internal/metadata"
	"github.com/bull/ragchain/internal/retriever"
	"github.com/bull/ragchain/internal/schema"
	"github.com/bull/ragchain/internal/storage"
)

var vocab = []string{"sky", "blue", "grass", "green", "color", "widget"}

// vocabEmbedder maps text to word counts over a fixed vocabulary.
type vocabEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *vocabEmbedder) Dimension() int { return len(vocab) }

func (e *vocabEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(vocab))
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,?!")
			for j, term := range vocab {
				if w == term {
					v[j]++
				}
			}
		}
		v[len(vocab)-1] += 0.01
		out[i] = v
	}
	return out, nil
}

func newPipeline(t *testing.T, embedder *vocabEmbedder, cfg Config) (*Pipeline, *storage.SQLite) {
	t.Helper()
	index, err := storage.NewSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	ch, err := chunker.New(chunker.Config{MaxSize: 20, Overlap: 0})
	require.NoError(t, err)

	if cfg.Collection == "" {
		cfg.Collection = "docs"
	}
	p, err := NewPipeline(ch, embedder, index, nil, cfg, nil)
	require.NoError(t, err)
	return p, index
}

func TestIndex_EndToEndRetrieval(t *testing.T) {
	ctx := context.Background()
	embedder := &vocabEmbedder{}
	p, index := newPipeline(t, embedder, Config{})

	docs := []schema.Document{{
		Content:  "The sky is blue. Grass is green.",
		Metadata: map[string]any{schema.MetaSource: "colors.txt"},
	}}
	result, err := p.Index(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Equal(t, 2, result.TotalChunks)
	assert.Empty(t, result.FailedDocs)

	r, err := retriever.New(embedder, index, "docs", 1)
	require.NoError(t, err)
	found, err := r.Retrieve(ctx, "what color is the sky")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "The sky is blue.", found[0].Record.Text)
	assert.Equal(t, "colors.txt", found[0].Record.Metadata[schema.MetaSource])
}

func TestIndex_Idempotent(t *testing.T) {
	ctx := context.Background()
	p, index := newPipeline(t, &vocabEmbedder{}, Config{})

	docs := []schema.Document{{
		Content:  "The sky is blue. Grass is green.",
		Metadata: map[string]any{schema.MetaSource: "colors.txt"},
	}}
	_, err := p.Index(ctx, docs)
	require.NoError(t, err)
	_, err = p.Index(ctx, docs)
	require.NoError(t, err)

	n, err := index.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndex_SharedSourcePositions(t *testing.T) {
	ctx := context.Background()
	p, index := newPipeline(t, &vocabEmbedder{}, Config{})

	docs := []schema.Document{
		{Content: "Page one sky.", Metadata: map[string]any{schema.MetaSource: "a.pdf", schema.MetaPage: 1}},
		{Content: "Page two grass.", Metadata: map[string]any{schema.MetaSource: "a.pdf", schema.MetaPage: 2}},
	}
	result, err := p.Index(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalChunks)

	n, err := index.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEqual(t, RecordID("a.pdf", 0), RecordID("a.pdf", 1))
	assert.Equal(t, RecordID("a.pdf", 0), RecordID("a.pdf", 0))
}

func TestIndex_FailedDocumentSkipped(t *testing.T) {
	p, _ := newPipeline(t, &vocabEmbedder{}, Config{})

	docs := []schema.Document{
		{Content: "   ", Metadata: map[string]any{schema.MetaSource: "empty.txt"}},
		{Content: "Blue sky.", Metadata: map[string]any{schema.MetaSource: "ok.txt"}},
	}
	result, err := p.Index(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "empty.txt", result.FailedDocs[0].Source)
}

func TestIndex_BatchesConcurrently(t *testing.T) {
	embedder := &vocabEmbedder{}
	p, index := newPipeline(t, embedder, Config{BatchSize: 2, Concurrency: 3})

	var docs []schema.Document
	for _, text := range []string{"sky", "blue", "grass", "green", "widget"} {
		docs = append(docs, schema.Document{Content: text, Metadata: map[string]any{schema.MetaSource: text + ".txt"}})
	}
	result, err := p.Index(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalChunks)
	assert.Equal(t, 3, embedder.calls)

	n, err := index.Count(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestIndex_EmbeddingFailureAborts(t *testing.T) {
	embedder := &vocabEmbedder{err: errors.New("embedding service down")}
	p, _ := newPipeline(t, embedder, Config{})

	_, err := p.Index(context.Background(), []schema.Document{{Content: "sky"}})
	assert.ErrorContains(t, err, "embedding service down")
}

func TestIndex_SummaryMetadata(t *testing.T) {
	ctx := context.Background()
	embedder := &vocabEmbedder{}
	index, err := storage.NewSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer index.Close()
	ch, err := chunker.New(chunker.Config{MaxSize: 100})
	require.NoError(t, err)

	model := &llmtest.Model{Responses: []string{`{"summary": "About the sky.", "entities": ["sky"]}`}}
	p, err := NewPipeline(ch, embedder, index, metadata.NewGenerator(model, 0, nil), Config{Collection: "docs"}, nil)
	require.NoError(t, err)

	_, err = p.Index(ctx, []schema.Document{{Content: "The sky is blue.", Metadata: map[string]any{schema.MetaSource: "s.txt"}}})
	require.NoError(t, err)

	results, err := index.Query(ctx, "docs", []float32{1, 0, 0, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "About the sky.", results[0].Record.Metadata[schema.MetaSummary])
	assert.Equal(t, "sky", results[0].Record.Metadata["entities"])
}

func TestNewPipeline_RequiresCollection(t *testing.T) {
	_, err := NewPipeline(nil, &vocabEmbedder{}, nil, nil, Config{}, nil)
	assert.Error(t, err)
}
