// Package storage implements the vector index: collection-scoped upsert and
// k-nearest-neighbor queries over fixed-dimension embeddings.
//
// All backends rank by cosine similarity (higher is better) and break score
// ties by insertion order. Re-upserting an existing id replaces its content
// but keeps its original insertion position.
package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Record is a single indexed chunk. Records are owned by the index and never mutated.
type Record struct {
	ID       string         // Stable identifier; upserting an existing ID replaces the record
	Vector   []float32      // Embedding; length must equal the collection dimension
	Text     string         // Chunk text returned to the retriever
	Metadata map[string]any // Scalar provenance values (source, page, chunk_index...)
}

// Result is a record returned by a similarity query.
type Result struct {
	Record Record
	Score  float64 // Cosine similarity in [-1, 1]
}

// Index is the vector store contract shared by all backends.
type Index interface {
	// CreateCollection creates a collection with a fixed vector dimension.
	// It is idempotent; an existing collection with another dimension fails
	// with ErrDimensionMismatch.
	CreateCollection(ctx context.Context, name string, dim int) error
	// Upsert inserts or replaces records by ID. A record with the wrong
	// dimension fails the whole call with ErrDimensionMismatch and nothing is written.
	Upsert(ctx context.Context, collection string, records []Record) error
	// Query returns up to k records ordered by descending score.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Result, error)
	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)
	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
	Close() error
}

// checkDimensions validates every record against the collection dimension.
func checkDimensions(records []Record, dim int) error {
	for i, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("%w: record %d (%s) has %d dimensions, expected %d",
				ErrDimensionMismatch, i, rec.ID, len(rec.Vector), dim)
		}
	}
	return nil
}

func checkQuery(vector []float32, dim, k int) error {
	if k < 0 {
		return fmt.Errorf("k must be non-negative, got %d", k)
	}
	if len(vector) != dim {
		return fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}

// rankedResult pairs a result with its insertion sequence for tie-breaking.
type rankedResult struct {
	Result
	seq int64
}

// rank orders results by score descending, then insertion order, and keeps the top k.
func rank(results []rankedResult, k int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].seq < results[j].seq
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = r.Result
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
