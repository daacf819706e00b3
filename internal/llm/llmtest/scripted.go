// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/bull/ragchain/internal/llm"
)

// ErrExhausted is returned when the script has no response left.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Model replays canned responses in order. Generate consumes Responses;
// Stream consumes Streams. Every call's messages are recorded.
type Model struct {
	mu sync.Mutex

	Responses []string
	Streams   [][]string

	// GenerateErr and StreamErr, when set, fail every call of that kind.
	GenerateErr error
	StreamErr   error
	// FailAfter makes a stream return FailErr after that many fragments.
	FailAfter int
	FailErr   error

	GenerateCalls [][]llm.Message
	StreamCalls   [][]llm.Message
	Options       []llm.Options
	closed        int
}

var _ llm.Model = (*Model)(nil)

func (m *Model) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = append(m.GenerateCalls, clone(messages))
	m.Options = append(m.Options, opts)
	if err := ctx.Err(); err != nil {
		return "", llm.WrapTimeout(err)
	}
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	if len(m.Responses) == 0 {
		return "", ErrExhausted
	}
	out := m.Responses[0]
	m.Responses = m.Responses[1:]
	return out, nil
}

func (m *Model) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls = append(m.StreamCalls, clone(messages))
	m.Options = append(m.Options, opts)
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	if len(m.Streams) == 0 {
		return nil, ErrExhausted
	}
	frags := m.Streams[0]
	m.Streams = m.Streams[1:]
	return &stream{model: m, ctx: ctx, frags: frags, failAfter: m.FailAfter, failErr: m.FailErr, pos: -1}, nil
}

// Closed reports how many streams have been closed.
func (m *Model) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the number of Generate and Stream calls made so far.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls) + len(m.StreamCalls)
}

func clone(messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	copy(out, messages)
	return out
}

type stream struct {
	model     *Model
	ctx       context.Context
	frags     []string
	failAfter int
	failErr   error
	pos       int
	err       error
	closed    bool
}

func (s *stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.failErr != nil && s.pos+1 >= s.failAfter {
		s.err = s.failErr
		return false
	}
	if s.pos+1 >= len(s.frags) {
		return false
	}
	s.pos++
	return true
}

func (s *stream) Current() string {
	if s.pos < 0 || s.pos >= len(s.frags) {
		return ""
	}
	return s.frags[s.pos]
}

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.model.mu.Lock()
	s.model.closed++
	s.model.mu.Unlock()
	return nil
}
