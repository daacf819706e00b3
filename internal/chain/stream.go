package chain

import (
	"log/slog"
	"strings"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/storage"
)

// Stream yields answer fragments as the model produces them. It is single
// pass and not safe for concurrent use.
//
// The exchange is written to memory only when the model stream ends
// without error. Closing early or failing mid-stream leaves memory unchanged.
type Stream struct {
	inner      llm.Stream
	memory     *memory.Memory
	question   string
	standalone string
	sources    []storage.Result
	logger     *slog.Logger

	answer  strings.Builder
	current string
	err     error
	done    bool
}

// Next advances to the next fragment. It returns false when the answer is
// complete, on error, or after Close.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.inner.Next() {
		s.current = s.inner.Current()
		s.answer.WriteString(s.current)
		return true
	}

	s.done = true
	s.current = ""
	if err := s.inner.Err(); err != nil {
		s.err = &StageError{Stage: StageGenerate, Err: err}
		s.inner.Close()
		return false
	}
	s.inner.Close()
	s.memory.AppendExchange(s.question, s.answer.String())
	s.logger.Debug("answer complete", "chars", s.answer.Len())
	return false
}

// Current returns the most recent fragment.
func (s *Stream) Current() string {
	return s.current
}

// Err returns the generation error, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the stream and releases the model connection.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.inner.Close()
}

// Sources returns the retrieved results when ReturnSources is enabled.
func (s *Stream) Sources() []storage.Result {
	return s.sources
}

// Result returns the accumulated output. The answer is complete only after
// Next has returned false with a nil Err.
func (s *Stream) Result() *Result {
	return &Result{
		Answer:   s.answer.String(),
		Question: s.standalone,
		Sources:  s.sources,
	}
}
