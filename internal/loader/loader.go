// Package loader turns files, web pages and repositories into
// schema.Documents with provenance metadata.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bull/ragchain/internal/schema"
)

// ErrUnsupported is returned for file types no loader handles.
var ErrUnsupported = errors.New("unsupported document type")

// Loader produces documents from one source.
type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// ForFile picks a loader by file extension.
func ForFile(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", "":
		return &Text{Path: path}, nil
	case ".md", ".markdown":
		return &Markdown{Path: path}, nil
	case ".html", ".htm":
		return &HTML{Path: path}, nil
	case ".pdf":
		return &PDF{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// FromPath loads a single file or, for a directory, every supported file
// below it in lexical order. Unsupported files inside a directory are
// skipped; an unsupported file named directly is an error.
func FromPath(ctx context.Context, path string) ([]schema.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		l, err := ForFile(path)
		if err != nil {
			return nil, err
		}
		return l.Load(ctx)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, err := ForFile(p); err == nil {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	var docs []schema.Document
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l, _ := ForFile(f)
		loaded, err := l.Load(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func metadata(source string) map[string]any {
	return map[string]any{schema.MetaSource: source}
}
