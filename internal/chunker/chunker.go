// Package chunker splits document text into bounded-size, optionally overlapping chunks.
//
// Text is cut on the coarsest boundary that fits: paragraphs first, then
// sentences, then hard character cuts. Sizes are counted in characters (runes).
package chunker

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bull/ragchain/internal/schema"
)

const (
	// DefaultMaxSize matches the splitter size used for PDF ingestion.
	DefaultMaxSize = 2000
	// DefaultOverlap is no overlap between adjacent chunks.
	DefaultOverlap = 0
)

// ErrSplit is returned for invalid split parameters or empty input.
var ErrSplit = errors.New("split error")

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

// Config holds the split parameters. It is validated once by New.
type Config struct {
	MaxSize int // Maximum characters per chunk
	Overlap int // Characters adjacent chunks may share; must be < MaxSize
}

// Validate checks that MaxSize is positive and Overlap is in [0, MaxSize).
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrSplit, c.MaxSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrSplit, c.Overlap)
	}
	if c.Overlap >= c.MaxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrSplit, c.Overlap, c.MaxSize)
	}
	return nil
}

// Chunker splits text deterministically: identical input and Config always
// produce an identical chunk sequence.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, failing fast on invalid parameters.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the chunker's split parameters.
func (c *Chunker) Config() Config {
	return c.cfg
}

// unit is an atomic piece of text plus the separator that joins it to the
// previous unit when both land in the same chunk.
type unit struct {
	text string
	sep  string
	size int
}

// Split cuts text into chunks of at most MaxSize characters.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: input is empty", ErrSplit)
	}
	return c.merge(c.units(text)), nil
}

// SplitDocument splits a document and copies its metadata onto every chunk.
func (c *Chunker) SplitDocument(doc schema.Document) ([]schema.Chunk, error) {
	texts, err := c.Split(doc.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]schema.Chunk, len(texts))
	for i, text := range texts {
		meta := make(map[string]any, len(doc.Metadata)+1)
		maps.Copy(meta, doc.Metadata)
		meta[schema.MetaChunkIndex] = i
		chunks[i] = schema.Chunk{Index: i, Text: text, Metadata: meta}
	}
	return chunks, nil
}

// units breaks text into pieces no larger than MaxSize, preferring
// paragraph boundaries, then sentence boundaries, then hard cuts.
func (c *Chunker) units(text string) []unit {
	var out []unit
	for _, para := range splitParagraphs(text) {
		if n := utf8.RuneCountInString(para); n <= c.cfg.MaxSize {
			out = append(out, unit{text: para, sep: paragraphSep, size: n})
			continue
		}

		sep := paragraphSep
		for _, sentence := range splitSentences(para) {
			for _, piece := range hardCut(sentence, c.cfg.MaxSize) {
				out = append(out, unit{text: piece, sep: sep, size: utf8.RuneCountInString(piece)})
				sep = sentenceSep
			}
		}
	}
	return out
}

// merge packs units greedily into chunks. When a chunk is full, the next
// chunk starts with the longest run of trailing units that fits in Overlap.
func (c *Chunker) merge(units []unit) []string {
	var (
		chunks  []string
		current []unit
		size    int
	)

	joinedSize := func(us []unit) int {
		n := 0
		for i, u := range us {
			if i > 0 {
				n += len(u.sep)
			}
			n += u.size
		}
		return n
	}

	for _, u := range units {
		if len(current) > 0 && size+len(u.sep)+u.size > c.cfg.MaxSize {
			chunks = append(chunks, join(current))
			current = c.overlapTail(current, u)
			size = joinedSize(current)
		}
		if len(current) > 0 {
			size += len(u.sep)
		}
		current = append(current, u)
		size += u.size
	}
	if len(current) > 0 {
		chunks = append(chunks, join(current))
	}
	return chunks
}

// overlapTail returns the trailing units of prev to repeat at the start of
// the next chunk. The tail never exceeds Overlap and always leaves room for next.
func (c *Chunker) overlapTail(prev []unit, next unit) []unit {
	if c.cfg.Overlap == 0 {
		return nil
	}

	start := len(prev)
	size := 0
	for i := len(prev) - 1; i >= 0; i-- {
		grown := size + prev[i].size
		if i < len(prev)-1 {
			grown += len(prev[i+1].sep)
		}
		if grown > c.cfg.Overlap || grown+len(next.sep)+next.size > c.cfg.MaxSize {
			break
		}
		size = grown
		start = i
	}
	return append([]unit(nil), prev[start:]...)
}

func join(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			b.WriteString(u.sep)
		}
		b.WriteString(u.text)
	}
	return b.String()
}

// splitParagraphs splits on blank lines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, paragraphSep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardCut splits text into pieces of at most max runes.
func hardCut(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}
	out := make([]string, 0, len(runes)/max+1)
	for start := 0; start < len(runes); start += max {
		end := min(start+max, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}
