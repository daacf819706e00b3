package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGVector is an Index stored in PostgreSQL with the pgvector extension.
//
// The database must allow CREATE EXTENSION vector, or have it installed.
type PGVector struct {
	pool *pgxpool.Pool
}

const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS rag_collections (
	name TEXT PRIMARY KEY,
	dim  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rag_records (
	seq        BIGSERIAL PRIMARY KEY,
	collection TEXT NOT NULL REFERENCES rag_collections(name),
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding  vector NOT NULL,
	UNIQUE (collection, id)
);`

// NewPGVector connects to dsn and creates the schema if needed.
func NewPGVector(ctx context.Context, dsn string) (*PGVector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pgvector: %v", ErrUnreachable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if _, err := pool.Exec(ctx, pgvectorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create pgvector schema: %w", err)
	}
	return &PGVector{pool: pool}, nil
}

func (p *PGVector) CreateCollection(ctx context.Context, name string, dim int) (err error) {
	defer wrapTimeout(ctx, &err)
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO rag_collections(name, dim) VALUES($1, $2) ON CONFLICT (name) DO NOTHING`, name, dim)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	existing, err := p.dimension(ctx, name)
	if err != nil {
		return err
	}
	if existing != dim {
		return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
			ErrDimensionMismatch, name, existing, dim)
	}
	return nil
}

func (p *PGVector) dimension(ctx context.Context, collection string) (int, error) {
	var dim int
	err := p.pool.QueryRow(ctx, `SELECT dim FROM rag_collections WHERE name = $1`, collection).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup collection %s: %w", collection, err)
	}
	return dim, nil
}

func (p *PGVector) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	defer wrapTimeout(ctx, &err)
	if len(records) == 0 {
		return nil
	}
	dim, err := p.dimension(ctx, collection)
	if err != nil {
		return err
	}
	if err := checkDimensions(records, dim); err != nil {
		return err
	}

	const query = `
INSERT INTO rag_records (collection, id, text, metadata, embedding)
VALUES ($1, $2, $3, $4::jsonb, $5::vector)
ON CONFLICT (collection, id) DO UPDATE
SET text      = EXCLUDED.text,
    metadata  = EXCLUDED.metadata,
    embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, rec := range records {
		meta, err := marshalMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		batch.Queue(query, collection, rec.ID, rec.Text, meta, vectorLiteral(rec.Vector))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (p *PGVector) Query(ctx context.Context, collection string, vector []float32, k int) (_ []Result, err error) {
	defer wrapTimeout(ctx, &err)
	dim, err := p.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(vector, dim, k); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Result{}, nil
	}

	// pgvector returns cosine distance; score is 1 - distance.
	rows, err := p.pool.Query(ctx, `
SELECT seq, id, text, metadata::text, embedding::text, embedding <=> $2::vector AS distance
FROM rag_records
WHERE collection = $1
ORDER BY distance ASC, seq ASC
LIMIT $3`, collection, vectorLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var ranked []rankedResult
	for rows.Next() {
		var (
			seq                   int64
			id, text, meta, embed string
			distance              float64
		)
		if err := rows.Scan(&seq, &id, &text, &meta, &embed, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		metadata, err := unmarshalMetadata(meta)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		vec, err := parseVectorLiteral(embed)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		ranked = append(ranked, rankedResult{
			Result: Result{
				Record: Record{ID: id, Vector: vec, Text: text, Metadata: metadata},
				Score:  1 - distance,
			},
			seq: seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return rank(ranked, k), nil
}

func (p *PGVector) Count(ctx context.Context, collection string) (_ int, err error) {
	defer wrapTimeout(ctx, &err)
	if _, err := p.dimension(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	err = p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rag_records WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (p *PGVector) Health(ctx context.Context) (err error) {
	defer wrapTimeout(ctx, &err)
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PGVector) Close() error {
	p.pool.Close()
	return nil
}

// vectorLiteral formats v as a pgvector text literal, e.g. "[1,0.5,2]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector literal: %w", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
