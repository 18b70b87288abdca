//go:build duckdb || all_adapters

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

const kind = "duckdb"

// Client walks a DuckDB database file opened read-only.
type Client struct {
	db       *sql.DB
	schema   string
	pageSize int
}

// New opens the file named by database_name.
func New(ctx context.Context, cfg warehouse.ConnectionConfig) (*Client, error) {
	if err := cfg.RequireField("database_name", cfg.DatabaseName); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DatabaseName); err != nil {
		return nil, apperrors.Validation("duckdb database file %q is not readable: %v", cfg.DatabaseName, err)
	}

	db, err := sql.Open("duckdb", cfg.DatabaseName+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{db: db, schema: cfg.Dataset, pageSize: pageSize}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) ListDatasets(ctx context.Context, pageToken string) (warehouse.Page, error) {
	if c.schema != "" {
		if pageToken != "" {
			return warehouse.Page{}, nil
		}
		return warehouse.Page{Names: []string{c.schema}}, nil
	}

	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE catalog_name = current_database()
		  AND schema_name NOT IN ('information_schema', 'pg_catalog')
		  AND schema_name > ?
		ORDER BY schema_name
		LIMIT ?
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize)
}

func (c *Client) ListTables(ctx context.Context, dataset, pageToken string) (warehouse.Page, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema = ?
		  AND table_type = 'BASE TABLE'
		  AND table_name > ?
		ORDER BY table_name
		LIMIT ?
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize, dataset)
}

// GetTableSchema reads duckdb_columns(), which carries COMMENT ON COLUMN text.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	const query = `
		SELECT column_name, data_type, is_nullable, comment
		FROM duckdb_columns()
		WHERE database_name = current_database()
		  AND schema_name = ?
		  AND table_name = ?
		ORDER BY column_index
	`
	return warehouse.QueryColumns(ctx, c.db, query, dataset, table)
}
