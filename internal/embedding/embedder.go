package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/storage"
)

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension is fixed for the lifetime of the embedder.
	Dimension() int
}

// OpenAI generates embeddings through an OpenAI-compatible API.
// It batches requests and backs off on rate limit errors.
type OpenAI struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

var _ Embedder = (*OpenAI)(nil)

func (e *OpenAI) Dimension() int {
	return e.dim
}

func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed generates embeddings for texts. A failure in any batch fails the
// whole call; no partial result is returned.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		e.logger.Debug("embedded batch", "model", e.model, "start", i, "end", end)
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatchWithRetry embeds a single batch. Only HTTP 429 is retried;
// other errors fail immediately.
func (e *OpenAI) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(llm.WrapTimeout(err))
		}

		out, err := e.collect(resp, len(texts))
		if err != nil {
			return backoff.Permanent(err)
		}
		vectors = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("embedding rate limited, retrying", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return vectors, nil
}

// collect places each returned vector at its input index and validates
// count and dimension.
func (e *OpenAI) collect(resp *openai.CreateEmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("embedding response has %d vectors, expected %d", len(resp.Data), want)
	}
	out := make([][]float32, want)
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= want || out[idx] != nil {
			return nil, fmt.Errorf("embedding response has invalid index %d", idx)
		}
		if len(data.Embedding) != e.dim {
			return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
				storage.ErrDimensionMismatch, e.model, len(data.Embedding), e.dim)
		}
		out[idx] = toFloat32(data.Embedding)
	}
	return out, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
