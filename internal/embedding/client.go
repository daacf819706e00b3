package embedding

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/ragchain/internal/llm"
)

const (
	// DefaultModel is the embedding model served by a local Ollama.
	DefaultModel = "mxbai-embed-large"

	// DefaultDimension is the vector size of mxbai-embed-large.
	DefaultDimension = 1024

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	DefaultBatchSize = 500

	DefaultTimeout = 60 * time.Second
)

// Config configures an OpenAI-compatible embedding backend.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int // Expected vector size; every response is checked against it
	BatchSize int
	Timeout   time.Duration // Per-batch bound
}

// NewOpenAI creates an Embedder for the OpenAI embeddings API or any
// compatible server (Ollama, vLLM, LocalAI).
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension == 0 && cfg.Model == DefaultModel {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be set for model %s", cfg.Model)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled here so they can be logged and bounded.
		option.WithMaxRetries(0),
	)

	return &OpenAI{
		client:    &client,
		model:     cfg.Model,
		dim:       cfg.Dimension,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}
