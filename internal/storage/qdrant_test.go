//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestQdrant connects to a local Qdrant and creates a fresh collection.
// Skips test if Qdrant is not running.
func setupTestQdrant(t *testing.T, dim int) (*Qdrant, string) {
	t.Helper()
	ctx := context.Background()

	q, err := NewQdrant(ctx, QdrantConfig{Host: "localhost", Port: 6334}, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	collection := "test-" + uuid.New().String()
	require.NoError(t, q.CreateCollection(ctx, collection, dim))
	t.Cleanup(func() { q.client.DeleteCollection(context.Background(), collection) })

	return q, collection
}

func TestQdrantUpsertAndQuery(t *testing.T) {
	q, collection := setupTestQdrant(t, 3)
	ctx := context.Background()

	err := q.Upsert(ctx, collection, []Record{
		{ID: "doc.pdf#0", Vector: []float32{1, 0, 0}, Text: "alpha", Metadata: map[string]any{"source": "doc.pdf", "page": 1}},
		{ID: "doc.pdf#1", Vector: []float32{0, 1, 0}, Text: "beta", Metadata: map[string]any{"source": "doc.pdf"}},
	})
	require.NoError(t, err)

	results, err := q.Query(ctx, collection, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc.pdf#0", results[0].Record.ID)
	assert.Equal(t, "alpha", results[0].Record.Text)
	assert.Equal(t, "doc.pdf", results[0].Record.Metadata["source"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	n, err := q.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQdrantReupsertKeepsCount(t *testing.T) {
	q, collection := setupTestQdrant(t, 2)
	ctx := context.Background()

	rec := Record{ID: "a", Vector: []float32{1, 0}, Text: "first"}
	require.NoError(t, q.Upsert(ctx, collection, []Record{rec}))
	rec.Text = "second"
	require.NoError(t, q.Upsert(ctx, collection, []Record{rec}))

	n, err := q.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := q.Query(ctx, collection, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Record.Text)
}

func TestQdrantDimensionValidation(t *testing.T) {
	q, collection := setupTestQdrant(t, 3)
	ctx := context.Background()

	err := q.Upsert(ctx, collection, []Record{{ID: "bad", Vector: make([]float32, 2)}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = q.Query(ctx, collection, make([]float32, 5), 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = q.CreateCollection(ctx, collection, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrantMissingCollection(t *testing.T) {
	q, _ := setupTestQdrant(t, 2)

	_, err := q.Count(context.Background(), "missing-"+uuid.New().String())
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
