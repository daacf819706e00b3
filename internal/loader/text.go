package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bull/ragchain/internal/schema"
)

// Text loads a plain text file as one document.
type Text struct {
	Path string
}

func (l *Text) Load(ctx context.Context) ([]schema.Document, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.Path, err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}
	return []schema.Document{{Content: content, Metadata: metadata(l.Path)}}, nil
}
