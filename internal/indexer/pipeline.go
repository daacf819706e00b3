// Package indexer runs ingestion: documents are chunked, embedded in
// concurrent batches and upserted into a vector index collection.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bull/ragchain/internal/chunker"
	"github.com/bull/ragchain/internal/embedding"
	"github.com/bull/ragchain/internal/loader"
	"github.com/bull/ragchain/internal/metadata"
	"github.com/bull/ragchain/internal/schema"
	"github.com/bull/ragchain/internal/storage"
)

const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Config controls how chunks are grouped for embedding and storage.
type Config struct {
	Collection  string
	BatchSize   int // Chunks per embed + upsert call
	Concurrency int // Batches in flight at once
}

// Validate checks the collection name and fills defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Collection) == "" {
		return errors.New("collection name is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return nil
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	Collection     string
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Source string
	Reason string
}

// Pipeline orchestrates chunking, embedding and storage.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     storage.Index
	generator *metadata.Generator
	cfg       Config
	logger    *slog.Logger
}

// NewPipeline creates an indexing pipeline. generator may be nil to skip
// summary metadata.
func NewPipeline(
	ch *chunker.Chunker,
	embedder embedding.Embedder,
	index storage.Index,
	generator *metadata.Generator,
	cfg Config,
	logger *slog.Logger,
) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:   ch,
		embedder:  embedder,
		index:     index,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// IndexFrom loads documents with l and indexes them.
func (p *Pipeline) IndexFrom(ctx context.Context, l loader.Loader) (*IndexResult, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return p.Index(ctx, docs)
}

// Index ingests docs into the configured collection. A document that
// cannot be chunked is recorded in FailedDocs and skipped; embedding or
// storage failures abort the run.
func (p *Pipeline) Index(ctx context.Context, docs []schema.Document) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Collection: p.cfg.Collection, TotalDocs: len(docs)}

	if err := p.index.CreateCollection(ctx, p.cfg.Collection, p.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	p.logger.Info("starting indexing", "collection", p.cfg.Collection, "documents", len(docs))

	var pending []storage.Record
	var texts []string
	positions := make(map[string]int)

	for i, doc := range docs {
		source := doc.Source()
		if source == "" {
			source = "document-" + strconv.Itoa(i)
		}

		if p.generator != nil {
			doc = p.summarize(ctx, source, doc)
		}

		chunks, err := p.chunker.SplitDocument(doc)
		if err != nil {
			p.logger.Warn("failed to chunk document", "source", source, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Source: source, Reason: err.Error()})
			continue
		}

		for _, chunk := range chunks {
			pos := positions[source]
			positions[source]++
			pending = append(pending, storage.Record{
				ID:       RecordID(source, pos),
				Text:     chunk.Text,
				Metadata: chunk.Metadata,
			})
			texts = append(texts, embeddingText(chunk))
		}
		result.SuccessfulDocs++
		p.logger.Debug("chunked document", "source", source, "chunks", len(chunks))
	}

	if err := p.store(ctx, pending, texts); err != nil {
		return nil, err
	}

	result.TotalChunks = len(pending)
	result.Duration = time.Since(start)
	p.logger.Info("indexing complete",
		"collection", p.cfg.Collection,
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

// store embeds and upserts records in batches, several batches at a time.
func (p *Pipeline) store(ctx context.Context, records []storage.Record, texts []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for start := 0; start < len(records); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(records))
		batch := records[start:end]
		batchTexts := texts[start:end]

		g.Go(func() error {
			vectors, err := p.embedder.Embed(gctx, batchTexts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			for i := range batch {
				batch[i].Vector = vectors[i]
			}
			if err := p.index.Upsert(gctx, p.cfg.Collection, batch); err != nil {
				return fmt.Errorf("upsert chunks %d-%d: %w", start, end-1, err)
			}
			p.logger.Debug("stored batch", "collection", p.cfg.Collection, "from", start, "to", end-1)
			return nil
		})
	}
	return g.Wait()
}

// summarize attaches generated summary metadata. Generation failures are
// logged and the document is indexed without it.
func (p *Pipeline) summarize(ctx context.Context, source string, doc schema.Document) schema.Document {
	meta, err := p.generator.GenerateMetadata(ctx, source, doc.Content)
	if err != nil {
		p.logger.Warn("metadata generation failed, indexing without summary", "source", source, "error", err)
		return doc
	}

	out := schema.Document{Content: doc.Content, Metadata: make(map[string]any, len(doc.Metadata)+2)}
	for k, v := range doc.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata[schema.MetaSummary] = meta.Summary
	if len(meta.Entities) > 0 {
		out.Metadata["entities"] = strings.Join(meta.Entities, ", ")
	}
	return out
}

// RecordID derives a stable record id from a chunk's source and its
// position among all chunks of that source.
func RecordID(source string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(position))).String()
}

// embeddingText prefixes a chunk with its markdown header path so section
// context is part of the vector. The stored text stays unprefixed.
func embeddingText(chunk schema.Chunk) string {
	if hp, ok := chunk.Metadata[schema.MetaHeaderPath].(string); ok && hp != "" {
		return hp + "\n\n" + chunk.Text
	}
	return chunk.Text
}
