package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragchain/internal/llm"
	"github.com/bull/ragchain/internal/llm/llmtest"
	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/storage"
)

type stubRetriever struct {
	results []storage.Result
	err     error
	queries []string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string) ([]storage.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

func skyDocs() []storage.Result {
	return []storage.Result{{
		Record: storage.Record{ID: "1", Text: "The sky is blue.", Metadata: map[string]any{"source": "colors.pdf"}},
		Score:  0.9,
	}}
}

func TestStreamWritesMemoryOnCompletion(t *testing.T) {
	model := &llmtest.Model{Streams: [][]string{{"The sky ", "is ", "blue."}}}
	ret := &stubRetriever{results: skyDocs()}
	mem := memory.New()

	c, err := New(model, ret, mem, Config{ReturnSources: true}, nil)
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), "what color is the sky")
	require.NoError(t, err)

	var got []string
	for s.Next() {
		got = append(got, s.Current())
		assert.Equal(t, 0, mem.Len(), "memory untouched while streaming")
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"The sky ", "is ", "blue."}, got)
	assert.Equal(t, "The sky is blue.", s.Result().Answer)
	assert.Len(t, s.Sources(), 1)

	history := mem.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "what color is the sky", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "The sky is blue.", history[1].Content)

	// The prompt carries the system message, tagged context and question.
	require.Len(t, model.StreamCalls, 1)
	msgs := model.StreamCalls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are a helpful assistant", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "[source: colors.pdf]\nThe sky is blue.")
	assert.Contains(t, msgs[1].Content, "Question: what color is the sky")
	assert.Equal(t, 1, model.Closed())
}

func TestStreamFailureLeavesMemoryUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	model := &llmtest.Model{Streams: [][]string{{"The ", "sky"}}, FailAfter: 1, FailErr: boom}
	mem := memory.New()
	mem.AppendExchange("earlier", "answer")

	c, err := New(model, &stubRetriever{results: skyDocs()}, mem, Config{}, nil)
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), "what color is the sky")
	require.NoError(t, err)
	for s.Next() {
	}

	assert.ErrorIs(t, s.Err(), ErrGeneration)
	assert.ErrorIs(t, s.Err(), boom)
	assert.Equal(t, 2, mem.Len())
	assert.Equal(t, 1, model.Closed())
}

func TestStreamAbandonedLeavesMemoryUnchanged(t *testing.T) {
	model := &llmtest.Model{Streams: [][]string{{"a", "b", "c"}}}
	mem := memory.New()

	c, err := New(model, &stubRetriever{}, mem, Config{}, nil)
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), "q")
	require.NoError(t, err)
	require.True(t, s.Next())
	require.NoError(t, s.Close())

	assert.False(t, s.Next())
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 1, model.Closed())
}

func TestRephraseUsesHistory(t *testing.T) {
	model := &llmtest.Model{
		Responses: []string{"  What color is the grass?  "},
		Streams:   [][]string{{"Green."}},
	}
	ret := &stubRetriever{}
	mem := memory.New()
	mem.AppendExchange("what color is the sky", "Blue.")

	c, err := New(model, ret, mem, Config{Rephrase: true}, nil)
	require.NoError(t, err)

	res, err := c.Invoke(context.Background(), "and the grass?")
	require.NoError(t, err)

	assert.Equal(t, "Green.", res.Answer)
	assert.Equal(t, "What color is the grass?", res.Question)
	assert.Equal(t, []string{"What color is the grass?"}, ret.queries)
	require.Len(t, model.GenerateCalls, 1)
	assert.Contains(t, model.GenerateCalls[0][0].Content, "user: what color is the sky")
	assert.Contains(t, model.GenerateCalls[0][0].Content, "Follow Up Input: and the grass?")

	history := mem.History()
	require.Len(t, history, 4)
	assert.Equal(t, "and the grass?", history[2].Content, "memory keeps the original question")
	assert.Nil(t, res.Sources)
}

func TestRephraseSkippedWithoutHistory(t *testing.T) {
	model := &llmtest.Model{Streams: [][]string{{"ok"}}}
	ret := &stubRetriever{}

	c, err := New(model, ret, nil, Config{Rephrase: true}, nil)
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "first question")
	require.NoError(t, err)
	assert.Empty(t, model.GenerateCalls)
	assert.Equal(t, []string{"first question"}, ret.queries)
}

func TestStageErrors(t *testing.T) {
	t.Run("rephrase", func(t *testing.T) {
		model := &llmtest.Model{GenerateErr: errors.New("model down")}
		mem := memory.New()
		mem.AppendExchange("q", "a")
		ret := &stubRetriever{}
		c, err := New(model, ret, mem, Config{Rephrase: true}, nil)
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), "follow up")
		assert.ErrorIs(t, err, ErrRephrase)
		assert.Empty(t, ret.queries, "retrieval never runs after a failed rephrase")
		assert.Equal(t, 2, mem.Len())
	})

	t.Run("retrieve", func(t *testing.T) {
		model := &llmtest.Model{}
		c, err := New(model, &stubRetriever{err: storage.ErrUnreachable}, nil, Config{}, nil)
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), "q")
		assert.ErrorIs(t, err, ErrRetrieval)
		assert.ErrorIs(t, err, storage.ErrUnreachable)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageRetrieve, stageErr.Stage)
		assert.Empty(t, model.StreamCalls)
	})

	t.Run("generate start", func(t *testing.T) {
		model := &llmtest.Model{StreamErr: llm.ErrTimeout}
		c, err := New(model, &stubRetriever{}, nil, Config{}, nil)
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), "q")
		assert.ErrorIs(t, err, ErrGeneration)
		assert.ErrorIs(t, err, llm.ErrTimeout)
		assert.Equal(t, 0, c.Memory().Len())
	})
}

func TestConfigValidation(t *testing.T) {
	model := &llmtest.Model{}
	ret := &stubRetriever{}

	_, err := New(model, ret, nil, Config{AnswerTemplate: "{{.Missing}}"}, nil)
	assert.Error(t, err)

	_, err = New(model, ret, nil, Config{Options: llm.Options{Temperature: -1}}, nil)
	assert.Error(t, err)

	_, err = New(nil, ret, nil, Config{}, nil)
	assert.Error(t, err)

	c, err := New(&llmtest.Model{Streams: [][]string{{"x"}}}, ret, nil,
		Config{AnswerTemplate: "Q={{.Question}} C={{.Context}}", SystemPrompt: "sys"}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), "why")
	require.NoError(t, err)
}
