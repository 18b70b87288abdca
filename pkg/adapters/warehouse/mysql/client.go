package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

const (
	kind        = "mysql"
	defaultPort = 3306
)

// Access denied for user.
const errAccessDenied = 1045

// Client walks a MySQL or MariaDB server. Databases play the role of datasets.
type Client struct {
	db       *sql.DB
	database string // restricts the walk when set
	pageSize int
}

// DSN builds a go-sql-driver DSN from the connection config.
func DSN(cfg warehouse.ConnectionConfig) (string, error) {
	if err := cfg.RequireField("host", cfg.Host); err != nil {
		return "", err
	}
	if err := cfg.RequireField("username", cfg.Username); err != nil {
		return "", err
	}
	password, err := cfg.RequireCredential("password")
	if err != nil {
		return "", err
	}
	port, err := cfg.PortOr(defaultPort)
	if err != nil {
		return "", err
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.DatabaseName
	mc.Timeout = 30 * time.Second
	if cfg.Credential("tls") == "true" {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN(), nil
}

// New opens and pings the server.
func New(ctx context.Context, cfg warehouse.ConnectionConfig) (*Client, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return newWithDB(db, cfg), nil
}

func newWithDB(db *sql.DB, cfg warehouse.ConnectionConfig) *Client {
	database := cfg.Dataset
	if database == "" {
		database = cfg.DatabaseName
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{db: db, database: database, pageSize: pageSize}
}

func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errAccessDenied {
		return &apperrors.CredentialError{Kind: kind, Reason: "authentication failed", Cause: err}
	}
	return fmt.Errorf("connect to mysql: %w", err)
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) ListDatasets(ctx context.Context, pageToken string) (warehouse.Page, error) {
	if c.database != "" {
		if pageToken != "" {
			return warehouse.Page{}, nil
		}
		return warehouse.Page{Names: []string{c.database}}, nil
	}

	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
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
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		  AND table_name > ?
		ORDER BY table_name
		LIMIT ?
	`
	return warehouse.QueryNames(ctx, c.db, query, pageToken, c.pageSize, dataset)
}

// GetTableSchema uses column_type so lengths and enum members are kept.
// An empty column comment is no description.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	const query = `
		SELECT column_name, column_type, is_nullable = 'YES', NULLIF(column_comment, '')
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	return warehouse.QueryColumns(ctx, c.db, query, dataset, table)
}

func (c *Client) ListRelationships(ctx context.Context) ([]warehouse.Relationship, error) {
	const query = `
		SELECT constraint_name, table_schema, table_name, column_name,
		       referenced_table_schema, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE referenced_table_name IS NOT NULL
		  AND table_schema NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		  AND (? = '' OR table_schema = ?)
		ORDER BY table_schema, table_name, constraint_name, ordinal_position
	`
	return warehouse.QueryRelationships(ctx, c.db, query, c.database, c.database)
}
