// Package llm defines the language model contract used by the chains and the agent,
// and an OpenAI-compatible implementation of it.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt wraps a flat prompt string as a single user message.
func Prompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Options are per-call generation parameters.
type Options struct {
	// Temperature controls sampling; 0 is deterministic.
	Temperature float64
	// MaxTokens caps the completion length. 0 leaves it to the backend.
	MaxTokens int
}

// Model generates text from a list of chat messages.
type Model interface {
	// Generate blocks until the full completion is available.
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	// Stream returns a lazily consumed sequence of text fragments.
	Stream(ctx context.Context, messages []Message, opts Options) (Stream, error)
}

// Stream is a single-pass sequence of generated text fragments.
// The consumer drives the pace by calling Next; calling Close before the
// sequence is exhausted releases the underlying connection.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}
