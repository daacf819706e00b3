package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dim  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL REFERENCES collections(name),
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	UNIQUE(collection, id)
);`

// SQLite is a durable single-file Index with exact (brute-force) cosine search.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens or creates the index database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnreachable, err)
	}
	// One writer keeps concurrent upserts from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) CreateCollection(ctx context.Context, name string, dim int) (err error) {
	defer wrapTimeout(ctx, &err)
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	existing, err := s.dimension(ctx, name)
	switch {
	case err == nil:
		if existing != dim {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				ErrDimensionMismatch, name, existing, dim)
		}
		return nil
	case !errors.Is(err, ErrCollectionNotFound):
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO collections(name, dim) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`, name, dim)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *SQLite) dimension(ctx context.Context, collection string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM collections WHERE name = ?`, collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup collection %s: %w", collection, err)
	}
	return dim, nil
}

func (s *SQLite) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	defer wrapTimeout(ctx, &err)
	if len(records) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return err
	}
	if err := checkDimensions(records, dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records(collection, id, text, metadata, embedding)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
	text = excluded.text,
	metadata = excluded.metadata,
	embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		meta, err := marshalMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, rec.ID, rec.Text, meta, encodeVector(rec.Vector)); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, collection string, vector []float32, k int) (_ []Result, err error) {
	defer wrapTimeout(ctx, &err)
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(vector, dim, k); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Result{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, text, metadata, embedding FROM records WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var ranked []rankedResult
	for rows.Next() {
		var (
			seq      int64
			id, text string
			meta     string
			blob     []byte
		)
		if err := rows.Scan(&seq, &id, &text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		vec := decodeVector(blob)
		metadata, err := unmarshalMetadata(meta)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		ranked = append(ranked, rankedResult{
			Result: Result{
				Record: Record{ID: id, Vector: vec, Text: text, Metadata: metadata},
				Score:  CosineSimilarity(vector, vec),
			},
			seq: seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return rank(ranked, k), nil
}

func (s *SQLite) Count(ctx context.Context, collection string) (_ int, err error) {
	defer wrapTimeout(ctx, &err)
	if _, err := s.dimension(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *SQLite) Health(ctx context.Context) (err error) {
	defer wrapTimeout(ctx, &err)
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// encodeVector stores float32 values little-endian, 4 bytes each.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func marshalMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(raw string) (map[string]any, error) {
	meta := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}
