package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer emulates the chat completions endpoint, streaming the given
// fragments as SSE when the request asks for a stream.
func chatServer(t *testing.T, fragments []string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if seen != nil {
			*seen = body
		}

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range fragments {
				chunk := map[string]any{
					"id": "c1", "object": "chat.completion.chunk", "created": 1, "model": "test",
					"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": f}}},
				}
				data, _ := json.Marshal(chunk)
				fmt.Fprintf(w, "data: %s\n\n", data)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "test",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": strings.Join(fragments, "")},
			}},
		})
	}))
}

func TestOpenAI_Generate(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, []string{"The sky ", "is blue."}, &seen)
	defer srv.Close()

	model := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, Model: "llama3.2"})
	messages := []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant"},
		{Role: RoleUser, Content: "what color is the sky"},
	}

	out, err := model.Generate(context.Background(), messages, Options{Temperature: 0, MaxTokens: 3000})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", out)

	assert.Equal(t, "llama3.2", seen["model"])
	assert.EqualValues(t, 3000, seen["max_tokens"])
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestOpenAI_Stream(t *testing.T) {
	srv := chatServer(t, []string{"Grass ", "is ", "green."}, nil)
	defer srv.Close()

	model := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	stream, err := model.Stream(context.Background(), Prompt("color of grass?"), Options{})
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	for stream.Next() {
		got = append(got, stream.Current())
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"Grass ", "is ", "green."}, got)
}

func TestOpenAI_GenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	model := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := model.Generate(context.Background(), Prompt("hi"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWrapTimeout(t *testing.T) {
	assert.NoError(t, WrapTimeout(nil))

	plain := fmt.Errorf("boom")
	assert.Equal(t, plain, WrapTimeout(plain))

	wrapped := WrapTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)

	// Wrapping twice must not nest the sentinel.
	assert.Equal(t, wrapped, WrapTimeout(wrapped))
}
