package loader

import (
	"context"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bull/ragchain/internal/github"
	"github.com/bull/ragchain/internal/schema"
)

// DefaultGitHubConcurrency bounds parallel file downloads.
const DefaultGitHubConcurrency = 4

// FileFetcher lists and downloads repository files.
type FileFetcher interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, relativePath string) (*github.File, error)
}

// GitHub loads every matching file of a repository directory. Markdown
// files are split into sections like Markdown.
type GitHub struct {
	Fetcher     FileFetcher
	Concurrency int
}

func (l *GitHub) Load(ctx context.Context) ([]schema.Document, error) {
	paths, err := l.Fetcher.List(ctx)
	if err != nil {
		return nil, err
	}

	limit := l.Concurrency
	if limit <= 0 {
		limit = DefaultGitHubConcurrency
	}

	perFile := make([][]schema.Document, len(paths))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			file, err := l.Fetcher.Fetch(gctx, p)
			if err != nil {
				return err
			}
			docs, err := fileDocuments(file)
			if err != nil {
				return err
			}
			mu.Lock()
			perFile[i] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []schema.Document
	for _, d := range perFile {
		docs = append(docs, d...)
	}
	return docs, nil
}

func fileDocuments(file *github.File) ([]schema.Document, error) {
	source := file.URL
	if source == "" {
		source = file.Path
	}

	var docs []schema.Document
	switch strings.ToLower(path.Ext(file.Path)) {
	case ".md", ".markdown":
		var err error
		docs, err = markdownDocuments([]byte(file.Content), source)
		if err != nil {
			return nil, err
		}
	default:
		content := strings.TrimSpace(file.Content)
		if content == "" {
			return nil, nil
		}
		docs = []schema.Document{{Content: content, Metadata: metadata(source)}}
	}

	for _, d := range docs {
		d.Metadata["path"] = file.Path
		if file.SHA != "" {
			d.Metadata["sha"] = file.SHA
		}
	}
	return docs, nil
}
