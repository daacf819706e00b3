package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 3, cfg.Retriever.K)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout.Duration)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
model = "gpt-4o-mini"
timeout = "30s"

[store]
backend = "qdrant"
collection = "manuals"
qdrant_port = 7000

[chunk]
max_size = 500
overlap = 50

[agent]
tool_timeout = "5s"
`), 0o644))

	t.Setenv("QDRANT_PORT", "6334")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout.Duration)
	assert.Equal(t, BackendQdrant, cfg.Store.Backend)
	assert.Equal(t, "manuals", cfg.Store.Collection)
	assert.Equal(t, 6334, cfg.Store.QdrantPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 500, cfg.Chunk.MaxSize)
	assert.Equal(t, 5*time.Second, cfg.Agent.ToolTimeout.Duration)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAG_COLLECTION=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RAG_COLLECTION") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Store.Collection)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[chunk]\nmax_size = 10\noverlap = 10\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "invalid chunk parameters")

	t.Setenv("QDRANT_PORT", "not-a-number")
	_, err = Load("")
	assert.ErrorContains(t, err, "QDRANT_PORT")
}

func TestValidate_Backends(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = BackendPGVector
	assert.Error(t, cfg.Validate())

	cfg.Store.PostgresURL = "postgres://localhost/rag"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Backend = "faiss"
	assert.Error(t, cfg.Validate())
}

// The README documents every key with its default value.
func TestReadmeExampleMatchesDefaults(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "README.md"))
	require.NoError(t, err)

	_, rest, ok := strings.Cut(string(data), "```toml\n")
	require.True(t, ok, "README has no toml block")
	block, _, ok := strings.Cut(rest, "```")
	require.True(t, ok)

	var cfg Config
	dec := toml.NewDecoder(strings.NewReader(block))
	dec.DisallowUnknownFields()
	require.NoError(t, dec.Decode(&cfg))

	assert.Equal(t, *Default(), cfg)
}
