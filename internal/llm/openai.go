package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

const (
	// DefaultBaseURL is Ollama's OpenAI-compatible endpoint.
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "llama3.2"
	// DefaultTimeout bounds a single blocking Generate call.
	DefaultTimeout = 120 * time.Second
)

// OpenAIConfig configures an OpenAI-compatible chat backend.
type OpenAIConfig struct {
	BaseURL string        // API base URL (OpenAI, Ollama /v1, vLLM...)
	APIKey  string        // Empty for backends that don't authenticate
	Model   string        // Chat model name
	Timeout time.Duration // Per-call bound; streams are bounded by the caller's context
}

// OpenAI implements Model over the OpenAI chat completions API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a chat model client. Missing fields fall back to the
// Ollama defaults, matching a local development setup.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		// The client refuses to send requests without a key; local backends ignore it.
		cfg.APIKey = "ollama"
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)

	return &OpenAI{
		client:  &client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Client returns the underlying OpenAI client, shared with the embedding package.
func (m *OpenAI) Client() *openai.Client {
	return m.client
}

// Generate returns the full completion for the given messages.
func (m *OpenAI) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.Chat.Completions.New(ctx, m.params(messages, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", WrapTimeout(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streamed completion. The returned stream must be closed.
func (m *OpenAI) Stream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := m.client.Chat.Completions.NewStreaming(ctx, m.params(messages, opts))
	if err := s.Err(); err != nil {
		cancel()
		s.Close()
		return nil, fmt.Errorf("start stream: %w", WrapTimeout(err))
	}
	return &openAIStream{stream: s, cancel: cancel}, nil
}

func (m *OpenAI) params(messages []Message, opts Options) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Messages:    toMessageParams(messages),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

func toMessageParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// openAIStream adapts an SSE chunk stream to Stream, skipping chunks without text.
type openAIStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	cancel  context.CancelFunc
	current string
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.current = delta
			return true
		}
	}
	return false
}

func (s *openAIStream) Current() string {
	return s.current
}

func (s *openAIStream) Err() error {
	return WrapTimeout(s.stream.Err())
}

func (s *openAIStream) Close() error {
	s.cancel()
	return s.stream.Close()
}
