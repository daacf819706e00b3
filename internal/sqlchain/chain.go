// Package sqlchain answers questions over a SQL database: the model writes
// one read-only query, the query runs, and the model answers from its rows.
package sqlchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/ragchain/internal/llm"
)

const (
	DefaultTopK    = 5
	DefaultMaxRows = 100
)

// Config is validated once by New.
type Config struct {
	// TopK is the row limit suggested to the model.
	TopK int
	// MaxRows caps the rows read back from the database.
	MaxRows int
	// Tables restricts the schema shown to the model. Empty means all tables.
	Tables []string
	Options llm.Options
}

// Validate rejects negative limits.
func (c Config) Validate() error {
	if c.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", c.TopK)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max rows must be non-negative, got %d", c.MaxRows)
	}
	return nil
}

// Result is the outcome of one question.
type Result struct {
	Question string
	Query    string
	Columns  []string
	Rows     [][]any
	Answer   string
}

// Chain is a SQL question answering chain.
type Chain struct {
	model  llm.Model
	db     Database
	cfg    Config
	logger *slog.Logger
}

// New builds a Chain.
func New(model llm.Model, db Database, cfg Config, logger *slog.Logger) (*Chain, error) {
	if model == nil || db == nil {
		return nil, errors.New("sql chain requires a model and a database")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{model: model, db: db, cfg: cfg, logger: logger}, nil
}

// Invoke writes a query for question, runs it and answers from the rows.
// A generated statement that is not read-only fails with ErrUnsafeQuery
// and is never sent to the database.
func (c *Chain) Invoke(ctx context.Context, question string) (*Result, error) {
	tables := c.cfg.Tables
	if len(tables) == 0 {
		var err error
		tables, err = c.db.TableNames(ctx)
		if err != nil {
			return nil, err
		}
	}
	info, err := c.db.TableInfo(ctx, tables)
	if err != nil {
		return nil, err
	}

	data := promptData{
		Dialect:  c.db.Dialect(),
		TopK:     c.cfg.TopK,
		Tables:   info,
		Question: question,
	}
	prompt, err := render(data)
	if err != nil {
		return nil, err
	}
	completion, err := c.model.Generate(ctx, llm.Prompt(prompt), c.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("generate query: %w", err)
	}

	query, err := CheckReadOnly(extractQuery(completion))
	if err != nil {
		c.logger.Warn("rejected generated query", "completion", completion, "error", err)
		return nil, err
	}
	c.logger.Debug("running generated query", "query", query)

	columns, rows, err := c.db.Query(ctx, query, c.cfg.MaxRows)
	if err != nil {
		return nil, err
	}

	data.Query = query
	data.Result = formatRows(columns, rows)
	prompt, err = render(data)
	if err != nil {
		return nil, err
	}
	answer, err := c.model.Generate(ctx, llm.Prompt(prompt), c.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Result{
		Question: question,
		Query:    query,
		Columns:  columns,
		Rows:     rows,
		Answer:   extractAnswer(answer),
	}, nil
}
