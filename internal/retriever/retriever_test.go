package retriever

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragchain/internal/storage"
)

// wordEmbedder counts occurrences of a fixed vocabulary.
type wordEmbedder struct {
	vocab []string
	calls int
	err   error
}

func (w *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(w.vocab))
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			tok = strings.Trim(tok, ".,?!")
			for j, v := range w.vocab {
				if tok == v {
					vec[j]++
				}
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (w *wordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := w.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (w *wordEmbedder) Dimension() int { return len(w.vocab) }

func setup(t *testing.T, texts ...string) (*wordEmbedder, storage.Index) {
	t.Helper()
	ctx := context.Background()
	emb := &wordEmbedder{vocab: []string{"sky", "blue", "grass", "green", "sun"}}

	idx, err := storage.NewSQLite(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.CreateCollection(ctx, "docs", emb.Dimension()))

	vectors, err := emb.Embed(ctx, texts)
	require.NoError(t, err)
	records := make([]storage.Record, len(texts))
	for i, text := range texts {
		records[i] = storage.Record{ID: text, Vector: vectors[i], Text: text}
	}
	require.NoError(t, idx.Upsert(ctx, "docs", records))
	emb.calls = 0
	return emb, idx
}

func TestRetrieveOrdersByScore(t *testing.T) {
	emb, idx := setup(t, "Grass is green.", "The sky is blue.", "The sun is up.")
	r, err := New(emb, idx, "docs", 2)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "blue sky")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "The sky is blue.", results[0].Record.Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRetrieveKOverride(t *testing.T) {
	emb, idx := setup(t, "Grass is green.", "The sky is blue.")
	r, err := New(emb, idx, "docs", 1)
	require.NoError(t, err)

	results, err := r.RetrieveK(context.Background(), "sky", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "k above collection size returns everything")

	ids := map[string]bool{}
	for _, res := range results {
		assert.False(t, ids[res.Record.ID], "duplicate result")
		ids[res.Record.ID] = true
	}
}

func TestRetrieveZeroK(t *testing.T) {
	emb, idx := setup(t, "Grass is green.")
	r, err := New(emb, idx, "docs", 3)
	require.NoError(t, err)

	results, err := r.RetrieveK(context.Background(), "grass", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, emb.calls)
}

func TestRetrieveEmbedError(t *testing.T) {
	emb, idx := setup(t, "Grass is green.")
	emb.err = errors.New("backend down")
	r, err := New(emb, idx, "docs", 3)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "grass")
	assert.ErrorIs(t, err, emb.err)
}

func TestNewDefaults(t *testing.T) {
	emb, idx := setup(t, "x")
	r, err := New(emb, idx, "docs", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultK, r.K())

	_, err = New(emb, idx, "", 1)
	assert.Error(t, err)
}
