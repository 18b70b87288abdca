package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// Client walks a PostgreSQL database. Schemas play the role of datasets.
type Client struct {
	pool     *pgxpool.Pool
	schema   string
	pageSize int
}

// New opens a small pool against the warehouse and verifies the login.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, apperrors.Validation("invalid postgres connection settings: %v", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify(err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{pool: pool, schema: cfg.Schema, pageSize: pageSize}, nil
}

// classify maps authentication failures to CredentialError. SQLSTATE class 28
// is "invalid authorization specification".
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "28P01" || pgErr.Code == "28000") {
		return &apperrors.CredentialError{Kind: kind, Reason: "authentication failed", Cause: err}
	}
	return fmt.Errorf("connect to postgres: %w", err)
}

func (c *Client) Close() error {
	c.pool.Close()
	return nil
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
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND schema_name NOT LIKE 'pg_temp_%'
		  AND schema_name NOT LIKE 'pg_toast_temp_%'
		  AND schema_name > $1
		ORDER BY schema_name
		LIMIT $2
	`
	return c.queryNames(ctx, query, pageToken)
}

func (c *Client) ListTables(ctx context.Context, dataset, pageToken string) (warehouse.Page, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		  AND table_name > $2
		ORDER BY table_name
		LIMIT $3
	`
	return c.queryNames(ctx, query, pageToken, dataset)
}

// queryNames appends the keyset token and a pageSize+1 limit to args.
func (c *Client) queryNames(ctx context.Context, query, pageToken string, args ...any) (warehouse.Page, error) {
	args = append(args, pageToken, c.pageSize+1)
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return warehouse.Page{}, fmt.Errorf("query names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return warehouse.Page{}, fmt.Errorf("scan names: %w", err)
	}
	return warehouse.PageOf(names, c.pageSize), nil
}

// GetTableSchema reads information_schema.columns. ordinal_position is the
// attribute number, so it doubles as the col_description key.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
	rows, err := c.pool.Query(ctx, query, dataset, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	fields, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (warehouse.Field, error) {
		var (
			name, typ   string
			nullable    bool
			description *string
		)
		if err := row.Scan(&name, &typ, &nullable, &description); err != nil {
			return warehouse.Field{}, err
		}
		f := warehouse.Field{Name: name, Type: typ, Mode: "REQUIRED"}
		if nullable {
			f.Mode = "NULLABLE"
		}
		if description != nil {
			f.Description = *description
		}
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan columns: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s.%s has no visible columns", dataset, table)
	}
	return fields, nil
}

// ListRelationships returns single-column foreign keys, restricted to the
// configured schema when one is set.
func (c *Client) ListRelationships(ctx context.Context) ([]warehouse.Relationship, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.table_schema,
			kcu.table_name,
			kcu.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND ($1::text = '' OR tc.table_schema::text = $1::text)
		ORDER BY kcu.table_schema, kcu.table_name, tc.constraint_name, kcu.ordinal_position
	`
	rows, err := c.pool.Query(ctx, query, c.schema)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	rels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (warehouse.Relationship, error) {
		var r warehouse.Relationship
		err := row.Scan(&r.Constraint, &r.FromDataset, &r.FromTable, &r.FromColumn,
			&r.ToDataset, &r.ToTable, &r.ToColumn)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan foreign keys: %w", err)
	}
	return rels, nil
}
