// Package app builds the components named by a config.Config and owns
// their lifetime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bull/ragchain/internal/agent"
	"github.com/bull/ragchain/internal/chain"
	"github.com/bull/ragchain/internal/chunker"
	"github.com/bull/ragchain/internal/config"
	"github.com/bull/ragchain/internal/embedding"
	"github.com/bull/ragchain/internal/indexer"
	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/metadata"
	"github.com/bull/ragchain/internal/retriever"
	"github.com/bull/ragchain/internal/storage"
	"github.com/bull/ragchain/internal/tools"
)

// App holds the shared components of one process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Model     llm.Model
	Embedder  embedding.Embedder
	Index     storage.Index
	Retriever *retriever.Retriever
}

// New connects to the configured backends. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	model := llm.NewOpenAI(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Duration,
	})

	embedBaseURL := cfg.Embedding.BaseURL
	if embedBaseURL == "" {
		embedBaseURL = cfg.LLM.BaseURL
	}
	embedder, err := embedding.NewOpenAI(embedding.Config{
		BaseURL:   embedBaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	index, err := OpenIndex(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	r, err := retriever.New(embedder, index, cfg.Store.Collection, cfg.Retriever.K)
	if err != nil {
		index.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Model:     model,
		Embedder:  embedder,
		Index:     index,
		Retriever: r,
	}, nil
}

// OpenIndex opens the vector index backend named by cfg.Backend.
func OpenIndex(ctx context.Context, cfg config.Store, logger *slog.Logger) (storage.Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendQdrant:
		logger.Info("connecting to qdrant", "host", cfg.QdrantHost, "port", cfg.QdrantPort)
		return storage.NewQdrant(ctx, storage.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantKey,
		}, logger)
	case config.BackendPGVector:
		logger.Info("connecting to postgres")
		return storage.NewPGVector(ctx, cfg.PostgresURL)
	case config.BackendSQLite:
		logger.Info("opening sqlite index", "path", cfg.SQLitePath)
		return storage.NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Close releases the index connection.
func (a *App) Close() error {
	return a.Index.Close()
}

// Pipeline builds the ingestion pipeline. summarize adds LLM summaries to
// every document.
func (a *App) Pipeline(summarize bool) (*indexer.Pipeline, error) {
	ch, err := chunker.New(chunker.Config{MaxSize: a.Config.Chunk.MaxSize, Overlap: a.Config.Chunk.Overlap})
	if err != nil {
		return nil, err
	}
	var gen *metadata.Generator
	if summarize {
		gen = metadata.NewGenerator(a.Model, 0, a.Logger)
	}
	return indexer.NewPipeline(ch, a.Embedder, a.Index, gen, indexer.Config{
		Collection: a.Config.Store.Collection,
	}, a.Logger)
}

func (a *App) options() llm.Options {
	return llm.Options{Temperature: a.Config.LLM.Temperature, MaxTokens: a.Config.LLM.MaxTokens}
}

// Memory loads the configured conversation memory file, or starts an
// empty memory when none is configured.
func (a *App) Memory() (*memory.Memory, error) {
	if a.Config.Chain.MemoryPath == "" {
		return memory.New(), nil
	}
	return memory.Load(a.Config.Chain.MemoryPath)
}

// SaveMemory persists mem when a memory file is configured.
func (a *App) SaveMemory(mem *memory.Memory) error {
	if a.Config.Chain.MemoryPath == "" {
		return nil
	}
	return mem.Save(a.Config.Chain.MemoryPath)
}

// Chain builds a conversational retrieval chain over mem.
func (a *App) Chain(mem *memory.Memory) (*chain.Chain, error) {
	return chain.New(a.Model, a.Retriever, mem, chain.Config{
		Rephrase:      a.Config.Chain.Rephrase,
		ReturnSources: a.Config.Chain.ReturnSources,
		Options:       a.options(),
	}, a.Logger)
}

// Tools builds the agent's tool registry from configuration. Date and the
// document search tool are always present.
func (a *App) Tools() (*tools.Registry, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	registry, err := tools.NewRegistry(
		&tools.Date{},
		&tools.Documents{Searcher: a.Retriever},
	)
	if err != nil {
		return nil, err
	}

	if a.Config.Tools.WebSearch {
		if err := registry.Register(tools.NewDuckDuckGo(client)); err != nil {
			return nil, err
		}
	}
	if key := a.Config.Tools.SerpAPIKey; key != "" {
		serp, err := tools.NewSerpAPI(key, client)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(serp); err != nil {
			return nil, err
		}
	}
	if a.Config.Tools.ShellEnabled {
		err := registry.Register(&tools.CommandExecutor{
			Allowed: a.Config.Tools.ShellCommands,
			Timeout: a.Config.Agent.ToolTimeout.Duration,
		})
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Agent builds an agent executor with the configured tools over mem.
func (a *App) Agent(mem *memory.Memory) (*agent.Executor, error) {
	registry, err := a.Tools()
	if err != nil {
		return nil, err
	}
	cfg := agent.DefaultConfig()
	cfg.MaxIterations = a.Config.Agent.MaxIterations
	cfg.ParseRetries = a.Config.Agent.ParseRetries
	if d := a.Config.Agent.ToolTimeout.Duration; d > 0 {
		cfg.ToolTimeout = d
	}
	cfg.Options = a.options()
	return agent.New(a.Model, registry, mem, cfg, a.Logger)
}
