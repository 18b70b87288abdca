package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

const (
	kind = "sqlite"

	// mainSchema is the only dataset a SQLite file exposes.
	mainSchema = "main"
)

// Client walks a SQLite database file opened read-only.
type Client struct {
	db       *sql.DB
	pageSize int
}

// New opens the file named by database_name. The file must already exist;
// SQLite would otherwise create an empty database.
func New(ctx context.Context, cfg warehouse.ConnectionConfig) (*Client, error) {
	if err := cfg.RequireField("database_name", cfg.DatabaseName); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DatabaseName); err != nil {
		return nil, apperrors.Validation("sqlite database file %q is not readable: %v", cfg.DatabaseName, err)
	}

	dsn := (&url.URL{Scheme: "file", Opaque: cfg.DatabaseName, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{db: db, pageSize: pageSize}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) ListDatasets(_ context.Context, pageToken string) (warehouse.Page, error) {
	if pageToken != "" {
		return warehouse.Page{}, nil
	}
	return warehouse.Page{Names: []string{mainSchema}}, nil
}

func (c *Client) ListTables(ctx context.Context, dataset, pageToken string) (warehouse.Page, error) {
	if dataset != mainSchema {
		return warehouse.Page{}, fmt.Errorf("unknown sqlite schema %q", dataset)
	}
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name > ?
		ORDER BY name
		LIMIT ?
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize)
}

// GetTableSchema reads pragma_table_info. SQLite has no column comments.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	if dataset != mainSchema {
		return nil, fmt.Errorf("unknown sqlite schema %q", dataset)
	}
	const query = `
		SELECT name, type, "notnull" = 0 AND pk = 0, NULL
		FROM pragma_table_info(?)
		ORDER BY cid
	`
	return warehouse.QueryColumns(ctx, c.db, query, table)
}

// ListRelationships reads pragma_foreign_key_list for every table. SQLite
// foreign keys are unnamed, so a name is derived from the table and key id.
// A reference without a column targets the parent's primary key.
func (c *Client) ListRelationships(ctx context.Context) ([]warehouse.Relationship, error) {
	const query = `
		SELECT
			'fk_' || m.name || '_' || p.id,
			'main',
			m.name,
			p."from",
			'main',
			p."table",
			COALESCE(p."to", (SELECT t.name FROM pragma_table_info(p."table") t WHERE t.pk = 1), '')
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.id, p.seq
	`
	return warehouse.QueryRelationships(ctx, c.db, query)
}
