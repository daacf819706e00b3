// Package retriever embeds a query and returns the nearest indexed chunks.
package retriever

import (
	"context"
	"fmt"

	"github.com/bull/ragchain/internal/embedding"
	"github.com/bull/ragchain/internal/storage"
)

// DefaultK is the number of results returned when none is configured.
const DefaultK = 3

// Retriever composes an Embedder with a collection in an Index.
type Retriever struct {
	embedder   embedding.Embedder
	index      storage.Index
	collection string
	k          int
}

// New creates a Retriever returning k results per query by default.
func New(embedder embedding.Embedder, index storage.Index, collection string, k int) (*Retriever, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("retriever requires an embedder and an index")
	}
	if collection == "" {
		return nil, fmt.Errorf("retriever requires a collection name")
	}
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{embedder: embedder, index: index, collection: collection, k: k}, nil
}

// K returns the default result count.
func (r *Retriever) K() int {
	return r.k
}

// Collection returns the collection queried by this retriever.
func (r *Retriever) Collection() string {
	return r.collection
}

// Retrieve returns the default number of results for query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]storage.Result, error) {
	return r.RetrieveK(ctx, query, r.k)
}

// RetrieveK returns up to k results ordered by descending score. k = 0
// returns an empty slice without calling the embedder.
func (r *Retriever) RetrieveK(ctx context.Context, query string, k int) ([]storage.Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("k must be non-negative, got %d", k)
	}
	if k == 0 {
		return []storage.Result{}, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.index.Query(ctx, r.collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collection, err)
	}
	return results, nil
}
