package sqlchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is the SQL backend the chain queries.
type Database interface {
	// Dialect names the SQL flavor for the prompt.
	Dialect() string
	// TableNames lists the queryable tables.
	TableNames(ctx context.Context) ([]string, error)
	// TableInfo describes tables as CREATE TABLE statements.
	TableInfo(ctx context.Context, tables []string) (string, error)
	// Query runs a read-only statement and returns at most maxRows rows.
	Query(ctx context.Context, query string, maxRows int) (columns []string, rows [][]any, err error)
}

// Postgres reads a PostgreSQL database through a pgx pool. Every query
// runs in a read-only transaction.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Database = (*Postgres)(nil)

// NewPostgres connects to dsn and verifies the connection. Tables are
// read from the "public" schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool, schema: "public"}, nil
}

func (p *Postgres) Dialect() string { return "PostgreSQL" }

func (p *Postgres) TableNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, p.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

type column struct {
	Name     string
	DataType string
	Nullable string
}

func (p *Postgres) TableInfo(ctx context.Context, tables []string) (string, error) {
	var parts []string
	for _, table := range tables {
		rows, err := p.pool.Query(ctx, `
			SELECT column_name, data_type, is_nullable FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`, p.schema, table)
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}
		cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[column])
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}
		if len(cols) == 0 {
			return "", fmt.Errorf("table %q not found", table)
		}
		parts = append(parts, createStatement(table, cols))
	}
	return strings.Join(parts, "\n\n"), nil
}

func createStatement(table string, cols []column) string {
	lines := make([]string, len(cols))
	for i, c := range cols {
		line := fmt.Sprintf("\t%s %s", c.Name, strings.ToUpper(c.DataType))
		if c.Nullable == "NO" {
			line += " NOT NULL"
		}
		lines[i] = line
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", table, strings.Join(lines, ",\n"))
}

func (p *Postgres) Query(ctx context.Context, query string, maxRows int) ([]string, [][]any, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return columns, out, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
