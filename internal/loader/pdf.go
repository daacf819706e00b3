package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/bull/ragchain/internal/schema"
)

// PDF loads a PDF as one document per page with text. Pages without
// extractable text are skipped.
type PDF struct {
	Path string
}

func (l *PDF) Load(ctx context.Context) ([]schema.Document, error) {
	f, r, err := pdf.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", l.Path, err)
	}
	defer f.Close()

	var docs []schema.Document
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", i, l.Path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		meta := metadata(l.Path)
		meta[schema.MetaPage] = i
		docs = append(docs, schema.Document{Content: text, Metadata: meta})
	}
	return docs, nil
}
