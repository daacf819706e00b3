package github

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// DefaultExtensions are the file suffixes fetched when none are configured.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// Source names the repository directory to read.
type Source struct {
	Owner      string
	Repo       string
	Path       string   // Directory inside the repository, empty for the root
	Ref        string   // Branch, tag or commit; empty for the default branch
	Extensions []string // File suffixes to include
}

// Validate checks that the source names a repository.
func (s Source) Validate() error {
	if s.Owner == "" || s.Repo == "" {
		return errors.New("github source needs owner and repo")
	}
	return nil
}

// File is a document fetched from GitHub.
type File struct {
	Path    string // Path relative to Source.Path
	Content string
	SHA     string // Git blob SHA
	URL     string // HTML URL of the file
}

// Fetcher lists and downloads files from one repository directory.
type Fetcher struct {
	client *Client
	source Source
}

// NewFetcher creates a fetcher for source.
func NewFetcher(client *Client, source Source) (*Fetcher, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if len(source.Extensions) == 0 {
		source.Extensions = DefaultExtensions
	}
	return &Fetcher{client: client, source: source}, nil
}

// Source returns the configured repository source.
func (f *Fetcher) Source() Source { return f.source }

func (f *Fetcher) options() *github.RepositoryContentGetOptions {
	if f.source.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.source.Ref}
}

// List recursively lists matching files below the source directory.
func (f *Fetcher) List(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.source.Path, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var files []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.source.Owner,
		f.source.Repo,
		fullPath,
		f.options(),
	)
	if err != nil {
		return nil, fmt.Errorf("get contents of %q: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if f.matches(name) {
				files = append(files, itemRelPath)
			}
		case "dir":
			subFiles, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
		}
	}

	return files, nil
}

func (f *Fetcher) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range f.source.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Fetch downloads one file by its path relative to the source directory.
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) (*File, error) {
	fullPath := path.Join(f.source.Path, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.source.Owner,
		f.source.Repo,
		fullPath,
		f.options(),
	)
	if err != nil {
		return nil, fmt.Errorf("get content of %q: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("%q is not a file", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content of %q: %w", fullPath, err)
	}

	return &File{
		Path:    relativePath,
		Content: content,
		SHA:     fileContent.GetSHA(),
		URL:     fileContent.GetHTMLURL(),
	}, nil
}

// LatestCommitSHA returns the most recent commit touching the source directory.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.source.Owner,
		f.source.Repo,
		&github.CommitsListOptions{
			SHA:         f.source.Ref,
			Path:        f.source.Path,
			ListOptions: github.ListOptions{PerPage: 1},
		},
	)
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %q", f.source.Path)
	}
	return commits[0].GetSHA(), nil
}
