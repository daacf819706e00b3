package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ragchain/internal/schema"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max size", Config{MaxSize: 0}},
		{"negative overlap", Config{MaxSize: 10, Overlap: -1}},
		{"overlap equals max size", Config{MaxSize: 10, Overlap: 10}},
		{"overlap exceeds max size", Config{MaxSize: 10, Overlap: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrSplit)
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := New(Config{MaxSize: 20})
	require.NoError(t, err)

	_, err = c.Split("   \n\n  ")
	assert.ErrorIs(t, err, ErrSplit)
}

func TestSplit_SentenceBoundaries(t *testing.T) {
	c, err := New(Config{MaxSize: 20, Overlap: 0})
	require.NoError(t, err)

	chunks, err := c.Split("The sky is blue. Grass is green.")
	require.NoError(t, err)
	assert.Equal(t, []string{"The sky is blue.", "Grass is green."}, chunks)
}

func TestSplit_ParagraphsPackedTogether(t *testing.T) {
	c, err := New(Config{MaxSize: 100})
	require.NoError(t, err)

	chunks, err := c.Split("First paragraph.\n\nSecond paragraph.\n\n\n\nThird.")
	require.NoError(t, err)
	assert.Equal(t, []string{"First paragraph.\n\nSecond paragraph.\n\nThird."}, chunks)
}

func TestSplit_HardCutLongWord(t *testing.T) {
	c, err := New(Config{MaxSize: 4})
	require.NoError(t, err)

	chunks, err := c.Split("abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}

func TestSplit_Overlap(t *testing.T) {
	c, err := New(Config{MaxSize: 24, Overlap: 10})
	require.NoError(t, err)

	chunks, err := c.Split("One two. Three. Four five six. Seven.")
	require.NoError(t, err)

	// "Three." fits in the overlap and is repeated; "Four five six." does not.
	assert.Equal(t, []string{"One two. Three.", "Three. Four five six.", "Seven."}, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 24)
	}
}

func TestSplit_BoundAndNoContentLoss(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 40) +
		"\n\n" + strings.Repeat("x", 333) + "\n\nÜnïcødé sentence here! Another one? Yes."

	for _, cfg := range []Config{{MaxSize: 50}, {MaxSize: 64, Overlap: 16}, {MaxSize: 2000}} {
		c, err := New(cfg)
		require.NoError(t, err)

		chunks, err := c.Split(text)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), cfg.MaxSize)
		}
		if cfg.Overlap == 0 {
			// Without overlap, every non-space character appears exactly once.
			assert.Equal(t, stripSpace(text), stripSpace(strings.Join(chunks, "")))
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(Config{MaxSize: 30, Overlap: 8})
	require.NoError(t, err)

	text := "Alpha beta. Gamma delta epsilon. Zeta eta theta iota.\n\nKappa lambda mu."
	first, err := c.Split(text)
	require.NoError(t, err)
	second, err := c.Split(text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitDocument_CopiesMetadata(t *testing.T) {
	c, err := New(Config{MaxSize: 20})
	require.NoError(t, err)

	doc := schema.Document{
		Content:  "The sky is blue. Grass is green.",
		Metadata: map[string]any{schema.MetaSource: "colors.txt"},
	}
	chunks, err := c.SplitDocument(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, "colors.txt", chunk.Metadata[schema.MetaSource])
		assert.Equal(t, i, chunk.Metadata[schema.MetaChunkIndex])
	}
	// The document's own metadata map is left untouched.
	assert.NotContains(t, doc.Metadata, schema.MetaChunkIndex)
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
