//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGVectorUpsertAndQuery(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	ctx := context.Background()

	p, err := NewPGVector(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()

	collection := "test-" + uuid.New().String()
	require.NoError(t, p.CreateCollection(ctx, collection, 2))
	assert.ErrorIs(t, p.CreateCollection(ctx, collection, 3), ErrDimensionMismatch)

	require.NoError(t, p.Upsert(ctx, collection, []Record{
		{ID: "a", Vector: []float32{1, 0}, Text: "east", Metadata: map[string]any{"source": "a.txt"}},
		{ID: "b", Vector: []float32{0, 1}, Text: "north"},
	}))

	results, err := p.Query(ctx, collection, []float32{1, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Record.ID)
	assert.Equal(t, "a.txt", results[0].Record.Metadata["source"])

	n, err := p.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
