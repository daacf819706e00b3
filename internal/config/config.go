// Package config loads process configuration from a TOML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "ragchain.toml"

// Store backends.
const (
	BackendQdrant   = "qdrant"
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// Duration is a time.Duration written as a string such as "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type LLM struct {
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	APIKey      string   `toml:"api_key"`
	Temperature float64  `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
	Timeout     Duration `toml:"timeout"`
}

type Embedding struct {
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
}

type Store struct {
	Backend     string `toml:"backend"`
	Collection  string `toml:"collection"`
	QdrantHost  string `toml:"qdrant_host"`
	QdrantPort  int    `toml:"qdrant_port"`
	QdrantKey   string `toml:"qdrant_api_key"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url"`
}

type Chunk struct {
	MaxSize int `toml:"max_size"`
	Overlap int `toml:"overlap"`
}

type Retriever struct {
	K int `toml:"k"`
}

type Chain struct {
	Rephrase      bool   `toml:"rephrase"`
	ReturnSources bool   `toml:"return_sources"`
	MemoryPath    string `toml:"memory_path"`
}

type Agent struct {
	MaxIterations int      `toml:"max_iterations"`
	ParseRetries  int      `toml:"parse_retries"`
	ToolTimeout   Duration `toml:"tool_timeout"`
}

type Tools struct {
	SerpAPIKey    string   `toml:"serpapi_key"`
	ShellEnabled  bool     `toml:"shell_enabled"`
	ShellCommands []string `toml:"shell_commands"`
	WebSearch     bool     `toml:"web_search"`
}

type SQL struct {
	DatabaseURL string `toml:"database_url"`
	TopK        int    `toml:"top_k"`
}

type GitHub struct {
	Token string `toml:"token"`
}

type Server struct {
	Port       string `toml:"port"`
	ServerMode bool   `toml:"server_mode"`
}

// Config is the full process configuration.
type Config struct {
	LLM       LLM       `toml:"llm"`
	Embedding Embedding `toml:"embedding"`
	Store     Store     `toml:"store"`
	Chunk     Chunk     `toml:"chunk"`
	Retriever Retriever `toml:"retriever"`
	Chain     Chain     `toml:"chain"`
	Agent     Agent     `toml:"agent"`
	Tools     Tools     `toml:"tools"`
	SQL       SQL       `toml:"sql"`
	GitHub    GitHub    `toml:"github"`
	Server    Server    `toml:"server"`
}

// Default returns the configuration of a local Ollama setup with an
// embedded SQLite index.
func Default() *Config {
	return &Config{
		LLM: LLM{
			BaseURL:   "http://localhost:11434/v1",
			Model:     "llama3.2",
			MaxTokens: 3000,
			Timeout:   Duration{120 * time.Second},
		},
		Embedding: Embedding{
			Model:     "mxbai-embed-large",
			Dimension: 1024,
			BatchSize: 500,
		},
		Store: Store{
			Backend:    BackendSQLite,
			Collection: "documents",
			QdrantHost: "localhost",
			QdrantPort: 6334,
			SQLitePath: "data/index.db",
		},
		Chunk:     Chunk{MaxSize: 2000, Overlap: 0},
		Retriever: Retriever{K: 3},
		Chain:     Chain{Rephrase: true},
		Agent: Agent{
			MaxIterations: 10,
			ParseRetries:  3,
			ToolTimeout:   Duration{60 * time.Second},
		},
		SQL:    SQL{TopK: 5},
		Server: Server{Port: "8080"},
	}
}

// Load builds the configuration. path names a TOML file; an empty path
// reads DefaultFile when present. A .env file in the working directory is
// loaded into the environment when present, without overriding variables
// that are already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.Collection, "RAG_COLLECTION")
	setString(&c.Store.QdrantHost, "QDRANT_HOST")
	setString(&c.Store.QdrantKey, "QDRANT_API_KEY")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")
	setString(&c.Store.PostgresURL, "PGVECTOR_URL")
	setString(&c.SQL.DatabaseURL, "DATABASE_URL")
	setString(&c.Tools.SerpAPIKey, "SERPAPI_API_KEY")
	setString(&c.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.Server.Port, "PORT")

	if err := setInt(&c.Store.QdrantPort, "QDRANT_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION"); err != nil {
		return err
	}
	if err := setBool(&c.Server.ServerMode, "SERVER_MODE"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendQdrant, BackendSQLite:
	case BackendPGVector:
		if c.Store.PostgresURL == "" {
			return errors.New("store.postgres_url is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		return errors.New("store.collection is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Chunk.MaxSize <= 0 || c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.MaxSize {
		return fmt.Errorf("invalid chunk parameters: max_size=%d overlap=%d", c.Chunk.MaxSize, c.Chunk.Overlap)
	}
	if c.Retriever.K < 0 {
		return fmt.Errorf("retriever.k must be non-negative, got %d", c.Retriever.K)
	}
	return nil
}
