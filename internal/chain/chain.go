// Package chain implements the conversational retrieval chain: condense the
// question against history, retrieve context, stream an answer, and record
// the exchange in memory once the answer is complete.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/storage"
)

// Retriever supplies context documents for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]storage.Result, error)
}

// Config is validated once by New and never mutated afterwards.
type Config struct {
	// Rephrase condenses follow-up questions into standalone ones using history.
	Rephrase bool
	// ReturnSources attaches the retrieved results to the final output.
	ReturnSources bool
	// SystemPrompt overrides the default system message.
	SystemPrompt string
	// AnswerTemplate overrides the answer prompt. It may reference
	// {{.Context}} and {{.Question}}.
	AnswerTemplate string
	// Options are passed to every model call.
	Options llm.Options
}

// Validate parses the templates and checks option ranges.
func (c Config) Validate() error {
	if c.Options.Temperature < 0 {
		return fmt.Errorf("temperature must be non-negative, got %v", c.Options.Temperature)
	}
	if c.Options.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be non-negative, got %d", c.Options.MaxTokens)
	}
	if c.AnswerTemplate != "" {
		if _, err := parseAnswerTemplate(c.AnswerTemplate); err != nil {
			return err
		}
	}
	return nil
}

func parseAnswerTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("answer").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid answer template: %w", err)
	}
	if err := tmpl.Execute(&strings.Builder{}, answerData{}); err != nil {
		return nil, fmt.Errorf("invalid answer template: %w", err)
	}
	return tmpl, nil
}

// Chain answers questions over an index, keeping a conversation memory.
// A Chain may be used by concurrent invocations; they share its Memory.
type Chain struct {
	model     llm.Model
	retriever Retriever
	memory    *memory.Memory
	cfg       Config
	system    string
	answer    *template.Template
	logger    *slog.Logger
}

// New validates cfg and builds a Chain. A nil mem starts an empty memory.
func New(model llm.Model, retriever Retriever, mem *memory.Memory, cfg Config, logger *slog.Logger) (*Chain, error) {
	if model == nil || retriever == nil {
		return nil, fmt.Errorf("chain requires a model and a retriever")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmplText := cfg.AnswerTemplate
	if tmplText == "" {
		tmplText = defaultAnswerTmpl
	}
	answer, err := parseAnswerTemplate(tmplText)
	if err != nil {
		return nil, err
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = strings.TrimSpace(defaultSystemPrompt)
	}

	return &Chain{
		model:     model,
		retriever: retriever,
		memory:    mem,
		cfg:       cfg,
		system:    system,
		answer:    answer,
		logger:    logger,
	}, nil
}

// Memory returns the conversation memory shared by invocations.
func (c *Chain) Memory() *memory.Memory {
	return c.memory
}

// Result is the outcome of a completed invocation.
type Result struct {
	Answer string
	// Question is the standalone question used for retrieval.
	Question string
	// Sources is set only when Config.ReturnSources is enabled.
	Sources []storage.Result
}

// Invoke runs the chain and collects the whole answer.
func (c *Chain) Invoke(ctx context.Context, question string) (*Result, error) {
	s, err := c.Stream(ctx, question)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for s.Next() {
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// Stream runs the rephrase and retrieve stages, then starts generation.
// The caller pulls fragments from the returned Stream and must Close it.
func (c *Chain) Stream(ctx context.Context, question string) (*Stream, error) {
	standalone, err := c.rephrase(ctx, question)
	if err != nil {
		return nil, &StageError{Stage: StageRephrase, Err: err}
	}

	docs, err := c.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return nil, &StageError{Stage: StageRetrieve, Err: err}
	}
	c.logger.Debug("retrieved context", "question", standalone, "documents", len(docs))

	prompt, err := render(c.answer, answerData{Context: formatContext(docs), Question: standalone})
	if err != nil {
		return nil, &StageError{Stage: StageGenerate, Err: err}
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: c.system},
		{Role: llm.RoleUser, Content: prompt},
	}

	inner, err := c.model.Stream(ctx, messages, c.cfg.Options)
	if err != nil {
		return nil, &StageError{Stage: StageGenerate, Err: err}
	}

	s := &Stream{
		inner:      inner,
		memory:     c.memory,
		question:   question,
		standalone: standalone,
		logger:     c.logger,
	}
	if c.cfg.ReturnSources {
		s.sources = docs
	}
	return s, nil
}

// rephrase condenses question against history. It is a no-op when disabled
// or when there is no history yet.
func (c *Chain) rephrase(ctx context.Context, question string) (string, error) {
	if !c.cfg.Rephrase {
		return question, nil
	}
	history := c.memory.History()
	if len(history) == 0 {
		return question, nil
	}

	prompt, err := render(rephrasePrompt, rephraseData{History: history, Question: question})
	if err != nil {
		return "", err
	}
	out, err := c.model.Generate(ctx, llm.Prompt(prompt), c.cfg.Options)
	if err != nil {
		return "", err
	}
	standalone := strings.TrimSpace(out)
	if standalone == "" {
		return "", errors.New("model returned an empty question")
	}
	c.logger.Debug("rephrased question", "original", question, "standalone", standalone)
	return standalone, nil
}
