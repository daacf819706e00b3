// Package memory holds the ordered question/answer log of a conversation.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bull/ragchain/internal/llm"
)

// Turn is a single message in the conversation history.
type Turn struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory is an append-only, chronologically ordered conversation log.
// It is safe for concurrent use; turns passed to one Append call are
// written together.
type Memory struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{now: time.Now}
}

// Append adds turns in order. Turns without a timestamp are stamped now.
func (m *Memory) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	for _, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = ts
		}
		m.turns = append(m.turns, t)
	}
}

// AppendExchange records a user question and the assistant's answer as one unit.
func (m *Memory) AppendExchange(question, answer string) {
	m.Append(
		Turn{Role: llm.RoleUser, Content: question},
		Turn{Role: llm.RoleAssistant, Content: answer},
	)
}

// History returns a copy of all turns, oldest first.
func (m *Memory) History() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Clear removes all turns.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

// Messages converts the history into chat messages.
func (m *Memory) Messages() []llm.Message {
	history := m.History()
	out := make([]llm.Message, len(history))
	for i, t := range history {
		out[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// MarshalJSON encodes the history as a JSON array of turns.
func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.History())
}

// UnmarshalJSON replaces the history with the decoded turns.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return fmt.Errorf("decode memory: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now == nil {
		m.now = time.Now
	}
	m.turns = turns
	return nil
}

// Load reads a memory file written by Save. A missing file yields an empty Memory.
func Load(path string) (*Memory, error) {
	m := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the history to path as indented JSON.
func (m *Memory) Save(path string) error {
	data, err := json.MarshalIndent(m.History(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}
