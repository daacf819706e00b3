package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestRankBreaksTiesByInsertionOrder(t *testing.T) {
	in := []rankedResult{
		{Result: Result{Record: Record{ID: "late"}, Score: 0.5}, seq: 9},
		{Result: Result{Record: Record{ID: "best"}, Score: 0.9}, seq: 5},
		{Result: Result{Record: Record{ID: "early"}, Score: 0.5}, seq: 1},
	}

	out := rank(in, 2)
	if assert.Len(t, out, 2) {
		assert.Equal(t, "best", out[0].Record.ID)
		assert.Equal(t, "early", out[1].Record.ID)
	}
}
