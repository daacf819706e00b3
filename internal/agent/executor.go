// Package agent runs a ReAct-style loop: the model picks a tool, the tool's
// output is fed back as an observation, and the loop repeats until the model
// gives a final answer or a budget is exhausted.
package agent

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/tools"
)

//go:embed prompt/system.md
var systemPromptTmpl string

var systemPrompt = template.Must(template.New("agent_system").Parse(systemPromptTmpl))

const (
	DefaultMaxIterations = 10
	DefaultParseRetries  = 3
	DefaultToolTimeout   = 60 * time.Second
)

// Config bounds a single invocation. It is validated by New.
type Config struct {
	// MaxIterations is the number of tool steps allowed before giving up.
	MaxIterations int
	// ParseRetries is the number of malformed responses tolerated per invocation.
	ParseRetries int
	// ToolTimeout bounds each tool run.
	ToolTimeout time.Duration
	Options     llm.Options
}

// DefaultConfig mirrors the conversational agent defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		ParseRetries:  DefaultParseRetries,
		ToolTimeout:   DefaultToolTimeout,
		Options:       llm.Options{Temperature: 0, MaxTokens: 3000},
	}
}

func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.ParseRetries <= 0 {
		return fmt.Errorf("parse retries must be positive, got %d", c.ParseRetries)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("tool timeout must be non-negative, got %s", c.ToolTimeout)
	}
	return nil
}

// Executor drives the reasoning loop. It holds no per-invocation state and
// may serve concurrent invocations.
type Executor struct {
	model    llm.Model
	registry *tools.Registry
	memory   *memory.Memory
	cfg      Config
	logger   *slog.Logger
}

// New builds an Executor. mem may be nil, in which case invocations are
// independent and nothing is remembered.
func New(model llm.Model, registry *tools.Registry, mem *memory.Memory, cfg Config, logger *slog.Logger) (*Executor, error) {
	if model == nil || registry == nil {
		return nil, fmt.Errorf("agent requires a model and a tool registry")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{model: model, registry: registry, memory: mem, cfg: cfg, logger: logger}, nil
}

// TranscriptEntry is one completed tool step.
type TranscriptEntry struct {
	Step        Step   `json:"step"`
	Observation string `json:"observation"`
}

// Result is the outcome of a successful invocation.
type Result struct {
	Output     string            `json:"output"`
	Transcript []TranscriptEntry `json:"transcript"`
	// Iterations counts tool steps taken.
	Iterations int `json:"iterations"`
}

// Invoke runs the loop for input until a final answer, an error, or cancellation.
func (e *Executor) Invoke(ctx context.Context, input string) (*Result, error) {
	system, err := e.renderSystemPrompt()
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	if e.memory != nil {
		messages = append(messages, e.memory.Messages()...)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	var (
		transcript    []TranscriptEntry
		iterations    int
		parseFailures int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent cancelled: %w", llm.WrapTimeout(err))
		}
		if iterations >= e.cfg.MaxIterations {
			return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, e.cfg.MaxIterations)
		}

		out, err := e.model.Generate(ctx, messages, e.cfg.Options)
		if err != nil {
			return nil, fmt.Errorf("agent step %d: %w", iterations+1, err)
		}

		step, err := parseStep(out)
		if err != nil {
			parseFailures++
			e.logger.Debug("agent output malformed", "attempt", parseFailures, "error", err)
			if parseFailures >= e.cfg.ParseRetries {
				return nil, fmt.Errorf("%w after %d attempts: %v", ErrParse, parseFailures, err)
			}
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: out},
				llm.Message{Role: llm.RoleUser, Content: formatError(err)},
			)
			continue
		}

		if step.Final {
			if e.memory != nil {
				e.memory.AppendExchange(input, step.FinalAnswer)
			}
			e.logger.Debug("agent finished", "iterations", iterations)
			return &Result{Output: step.FinalAnswer, Transcript: transcript, Iterations: iterations}, nil
		}

		iterations++
		e.logger.Debug("agent action", "iteration", iterations, "tool", step.Action, "input", step.ActionInput)

		observation, err := e.act(ctx, step)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, TranscriptEntry{Step: step, Observation: observation})
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: out},
			llm.Message{Role: llm.RoleUser, Content: "Observation: " + observation},
		)
	}
}

// act runs the selected tool. Unknown tools and tool failures become
// observations; only cancellation of the invocation is returned as an error.
func (e *Executor) act(ctx context.Context, step Step) (string, error) {
	toolCtx := ctx
	if e.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, e.cfg.ToolTimeout)
		defer cancel()
	}

	out, err := e.registry.Run(toolCtx, step.Action, step.ActionInput)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("agent cancelled during %s: %w", step.Action, llm.WrapTimeout(ctxErr))
	}

	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		e.logger.Debug("agent picked unknown tool", "tool", step.Action)
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].",
			step.Action, strings.Join(e.registry.Names(), ", ")), nil
	case err != nil:
		e.logger.Debug("tool failed", "tool", step.Action, "error", err)
		return "Error: " + llm.WrapTimeout(err).Error(), nil
	}
	return strings.TrimSpace(out), nil
}

func (e *Executor) renderSystemPrompt() (string, error) {
	data := struct {
		Tools     []tools.Info
		ToolNames string
	}{
		Tools:     e.registry.List(),
		ToolNames: strings.Join(e.registry.Names(), ", "),
	}
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render agent prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func formatError(err error) string {
	return fmt.Sprintf("Observation: Invalid format: %v. Respond with either an Action and an Action Input, or a Final Answer.", err)
}
