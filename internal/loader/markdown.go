package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/bull/ragchain/internal/markdown"
	"github.com/bull/ragchain/internal/schema"
)

// Markdown loads a markdown file as one document per H1/H2 section, each
// carrying its header path.
type Markdown struct {
	Path string
}

func (l *Markdown) Load(ctx context.Context) ([]schema.Document, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.Path, err)
	}
	return markdownDocuments(data, l.Path)
}

func markdownDocuments(data []byte, source string) ([]schema.Document, error) {
	sections, err := markdown.NewSectioner().Split(data)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}

	docs := make([]schema.Document, 0, len(sections))
	for _, s := range sections {
		meta := metadata(source)
		if s.HeaderPath != "" {
			meta[schema.MetaHeaderPath] = s.HeaderPath
		}
		if s.Title != "" {
			meta[schema.MetaTitle] = s.Title
		}
		docs = append(docs, schema.Document{Content: s.Content, Metadata: meta})
	}
	return docs, nil
}
