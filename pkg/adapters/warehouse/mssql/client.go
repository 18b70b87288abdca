package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssqldb "github.com/microsoft/go-mssqldb"
	_ "github.com/microsoft/go-mssqldb/azuread" // registers the azuresql driver

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// Login failed for user.
const errLoginFailed = 18456

// Client walks a SQL Server database. Schemas play the role of datasets.
type Client struct {
	db       *sql.DB
	schema   string
	pageSize int
}

// New opens and pings the database.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	driver, dsn, err := cfg.DriverAndDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return newWithDB(db, cfg), nil
}

func newWithDB(db *sql.DB, cfg *Config) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{db: db, schema: cfg.Schema, pageSize: pageSize}
}

func classify(err error) error {
	var msErr mssqldb.Error
	if errors.As(err, &msErr) && msErr.Number == errLoginFailed {
		return &apperrors.CredentialError{Kind: kind, Reason: "authentication failed", Cause: err}
	}
	return fmt.Errorf("connect to mssql: %w", err)
}

func (c *Client) Close() error {
	return c.db.Close()
}

// ListDatasets returns schemas owning at least one user table.
func (c *Client) ListDatasets(ctx context.Context, pageToken string) (warehouse.Page, error) {
	if c.schema != "" {
		if pageToken != "" {
			return warehouse.Page{}, nil
		}
		return warehouse.Page{Names: []string{c.schema}}, nil
	}

	const query = `
		SELECT TOP (@p2) s.name
		FROM sys.schemas s
		WHERE EXISTS (
			SELECT 1 FROM sys.tables t
			WHERE t.schema_id = s.schema_id AND t.is_ms_shipped = 0
		)
		  AND s.name > @p1
		ORDER BY s.name
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize)
}

func (c *Client) ListTables(ctx context.Context, dataset, pageToken string) (warehouse.Page, error) {
	const query = `
		SELECT TOP (@p3) t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		  AND t.is_ms_shipped = 0
		  AND t.name > @p2
		ORDER BY t.name
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize, dataset)
}

// GetTableSchema reads sys.columns; MS_Description extended properties become descriptions.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	const query = `
		SELECT
			c.name,
			TYPE_NAME(c.user_type_id),
			c.max_length,
			c.precision,
			c.scale,
			c.is_nullable,
			CAST(ep.value AS NVARCHAR(4000))
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.class = 1
			AND ep.major_id = c.object_id
			AND ep.minor_id = c.column_id
			AND ep.name = 'MS_Description'
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY c.column_id
	`
	rows, err := c.db.QueryContext(ctx, query, dataset, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var fields []warehouse.Field
	for rows.Next() {
		var (
			row                    warehouse.ColumnRow
			typeName               string
			maxLength, prec, scale int
		)
		if err := rows.Scan(&row.Name, &typeName, &maxLength, &prec, &scale, &row.Nullable, &row.Description); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		row.Type = formatType(typeName, maxLength, prec, scale)
		fields = append(fields, row.Field())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s.%s has no visible columns", dataset, table)
	}
	return fields, nil
}

func (c *Client) ListRelationships(ctx context.Context) ([]warehouse.Relationship, error) {
	const query = `
		SELECT
			fk.name,
			SCHEMA_NAME(pt.schema_id),
			pt.name,
			pc.name,
			SCHEMA_NAME(rt.schema_id),
			rt.name,
			rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables pt ON pt.object_id = fkc.parent_object_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fkc.referenced_object_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE (@p1 = '' OR SCHEMA_NAME(pt.schema_id) = @p1)
		ORDER BY SCHEMA_NAME(pt.schema_id), pt.name, fk.name, fkc.constraint_column_id
	`
	return warehouse.QueryRelationships(ctx, c.db, query, c.schema)
}
