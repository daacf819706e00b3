package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ghclient "github.com/bull/ragchain/internal/github"
	"github.com/bull/ragchain/internal/loader"
	"github.com/bull/ragchain/internal/schema"
)

var (
	ingestSummarize bool
	ingestGitHub    string
	ingestGitPath   string
	ingestGitRef    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths or URLs...]",
	Short: "Load, chunk, embed and index documents",
	Long: `Loads documents and indexes them into the configured collection.

Arguments may be files, directories (walked recursively) or http(s) URLs
of HTML pages. Supported files: .txt, .md, .html, .pdf.

With --github owner/repo, every markdown and text file below --path is
fetched from the repository instead.

Re-ingesting unchanged documents replaces their records in place.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSummarize, "summarize", false, "add an LLM-generated summary to each document")
	ingestCmd.Flags().StringVar(&ingestGitHub, "github", "", "index a GitHub repository (owner/repo)")
	ingestCmd.Flags().StringVar(&ingestGitPath, "path", "", "directory inside the GitHub repository")
	ingestCmd.Flags().StringVar(&ingestGitRef, "ref", "", "branch, tag or commit of the GitHub repository")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	if len(args) == 0 && ingestGitHub == "" {
		return fmt.Errorf("nothing to ingest: pass paths, URLs or --github")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var docs []schema.Document
	for _, arg := range args {
		loaded, err := loadArg(ctx, arg)
		if err != nil {
			return fmt.Errorf("load %s: %w", arg, err)
		}
		docs = append(docs, loaded...)
	}

	if ingestGitHub != "" {
		loaded, err := loadGitHub(ctx, a.Config.GitHub.Token)
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
	}
	fmt.Printf("Loaded %d documents\n", len(docs))

	pipeline, err := a.Pipeline(ingestSummarize)
	if err != nil {
		return err
	}
	result, err := pipeline.Index(ctx, docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Collection: %s\n", result.Collection)
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Source, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func loadArg(ctx context.Context, arg string) ([]schema.Document, error) {
	if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
		return loader.FromPath(ctx, arg)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arg, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return (&loader.HTML{Reader: resp.Body, Source: arg}).Load(ctx)
}

func loadGitHub(ctx context.Context, token string) ([]schema.Document, error) {
	owner, repo, ok := strings.Cut(ingestGitHub, "/")
	if !ok {
		return nil, fmt.Errorf("--github must be owner/repo, got %q", ingestGitHub)
	}
	client, err := ghclient.NewClient(token)
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	fetcher, err := ghclient.NewFetcher(client, ghclient.Source{
		Owner: owner,
		Repo:  repo,
		Path:  ingestGitPath,
		Ref:   ingestGitRef,
	})
	if err != nil {
		return nil, err
	}

	if sha, err := fetcher.LatestCommitSHA(ctx); err == nil {
		fmt.Printf("Fetching %s at commit %s\n", ingestGitHub, sha)
	}
	return (&loader.GitHub{Fetcher: fetcher}).Load(ctx)
}
