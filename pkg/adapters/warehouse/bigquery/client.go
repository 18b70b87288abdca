package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

const kind = "bigquery"

// Client walks a BigQuery project's datasets and tables.
type Client struct {
	bq       *bigquery.Client
	dataset  string
	pageSize int
}

// New opens a client using the connection's service-account credentials.
// The credential payload is the service-account JSON object itself.
func New(ctx context.Context, cfg warehouse.ConnectionConfig) (*Client, error) {
	if err := cfg.RequireField("project_id", cfg.ProjectID); err != nil {
		return nil, err
	}
	if len(cfg.Credentials) == 0 {
		return nil, apperrors.NewCredentialError(kind, "service account credentials are required")
	}
	credJSON, err := serviceAccountJSON(cfg.Credentials)
	if err != nil {
		return nil, &apperrors.CredentialError{Kind: kind, Reason: "invalid service account credentials", Cause: err}
	}
	return newWithOptions(ctx, cfg, option.WithCredentialsJSON(credJSON))
}

func newWithOptions(ctx context.Context, cfg warehouse.ConnectionConfig, opts ...option.ClientOption) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, &apperrors.CredentialError{Kind: kind, Reason: "authentication failed", Cause: err}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = warehouse.DefaultPageSize
	}
	return &Client{bq: bq, dataset: cfg.Dataset, pageSize: pageSize}, nil
}

// serviceAccountJSON accepts either the service-account object or a
// {"service_account_json": "<json string>"} wrapper.
func serviceAccountJSON(creds map[string]any) ([]byte, error) {
	if raw, ok := creds["service_account_json"].(string); ok {
		if !json.Valid([]byte(raw)) {
			return nil, errors.New("service_account_json is not valid JSON")
		}
		return []byte(raw), nil
	}
	if _, ok := creds["private_key"]; !ok {
		return nil, errors.New("private_key is missing")
	}
	return json.Marshal(creds)
}

func (c *Client) ListDatasets(ctx context.Context, pageToken string) (warehouse.Page, error) {
	// A configured dataset restricts the walk to that one dataset.
	if c.dataset != "" {
		if pageToken != "" {
			return warehouse.Page{}, nil
		}
		return warehouse.Page{Names: []string{c.dataset}}, nil
	}

	var datasets []*bigquery.Dataset
	next, err := iterator.NewPager(c.bq.Datasets(ctx), c.pageSize, pageToken).NextPage(&datasets)
	if err != nil {
		return warehouse.Page{}, classify("list datasets", err)
	}
	names := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		names = append(names, ds.DatasetID)
	}
	return warehouse.Page{Names: names, NextPageToken: next}, nil
}

func (c *Client) ListTables(ctx context.Context, dataset, pageToken string) (warehouse.Page, error) {
	var tables []*bigquery.Table
	next, err := iterator.NewPager(c.bq.Dataset(dataset).Tables(ctx), c.pageSize, pageToken).NextPage(&tables)
	if err != nil {
		return warehouse.Page{}, classify("list tables", err)
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.TableID)
	}
	return warehouse.Page{Names: names, NextPageToken: next}, nil
}

func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]warehouse.Field, error) {
	md, err := c.bq.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, classify("get table metadata", err)
	}
	fields := make([]warehouse.Field, 0, len(md.Schema))
	for _, f := range md.Schema {
		fields = append(fields, warehouse.Field{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        fieldMode(f),
			Description: f.Description,
		})
	}
	return fields, nil
}

func (c *Client) Close() error {
	return c.bq.Close()
}

func fieldMode(f *bigquery.FieldSchema) string {
	switch {
	case f.Repeated:
		return "REPEATED"
	case f.Required:
		return "REQUIRED"
	default:
		return "NULLABLE"
	}
}

// classify turns 401/403 responses into CredentialError so a bad service
// account is reported as such rather than as a catalog failure.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return &apperrors.CredentialError{Kind: kind, Reason: "authentication failed", Cause: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ warehouse.CatalogClient = (*Client)(nil)
