package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
)

// fakeBigQuery serves the three REST calls the catalog walk makes.
func fakeBigQuery(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		var body any
		switch {
		case strings.HasSuffix(path, "/projects/acme/datasets"):
			body = map[string]any{
				"datasets": []any{
					map[string]any{"datasetReference": map[string]any{"projectId": "acme", "datasetId": "sales"}},
				},
			}
		case strings.HasSuffix(path, "/datasets/sales/tables"):
			body = map[string]any{
				"tables": []any{
					map[string]any{"tableReference": map[string]any{"projectId": "acme", "datasetId": "sales", "tableId": "orders"}, "type": "TABLE"},
				},
			}
		case strings.HasSuffix(path, "/datasets/sales/tables/orders"):
			body = map[string]any{
				"tableReference": map[string]any{"projectId": "acme", "datasetId": "sales", "tableId": "orders"},
				"type":           "TABLE",
				"schema": map[string]any{
					"fields": []any{
						map[string]any{"name": "order_id", "type": "INTEGER", "mode": "REQUIRED"},
						map[string]any{"name": "amount", "type": "NUMERIC", "mode": "NULLABLE", "description": "gross"},
						map[string]any{"name": "tags", "type": "STRING", "mode": "REPEATED"},
					},
				},
			}
		default:
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, cfg warehouse.ConnectionConfig) *Client {
	t.Helper()
	srv := fakeBigQuery(t)
	c, err := newWithOptions(context.Background(), cfg,
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_CatalogWalk(t *testing.T) {
	c := newTestClient(t, warehouse.ConnectionConfig{Kind: kind, ProjectID: "acme", PageSize: 50})
	ctx := context.Background()

	datasets, err := c.ListDatasets(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, datasets.Names)
	assert.Empty(t, datasets.NextPageToken)

	tables, err := c.ListTables(ctx, "sales", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables.Names)

	fields, err := c.GetTableSchema(ctx, "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, []warehouse.Field{
		{Name: "order_id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "amount", Type: "NUMERIC", Mode: "NULLABLE", Description: "gross"},
		{Name: "tags", Type: "STRING", Mode: "REPEATED"},
	}, fields)
}

func TestClient_DatasetFilter(t *testing.T) {
	c := newTestClient(t, warehouse.ConnectionConfig{Kind: kind, ProjectID: "acme", Dataset: "finance"})

	page, err := c.ListDatasets(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, page.Names)

	page, err = c.ListDatasets(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, page.Names)
}

func TestNew_MissingProjectOrCredentials(t *testing.T) {
	_, err := New(context.Background(), warehouse.ConnectionConfig{Kind: kind, Credentials: map[string]any{"private_key": "k"}})
	assert.ErrorIs(t, err, apperrors.ErrCredential)

	_, err = New(context.Background(), warehouse.ConnectionConfig{Kind: kind, ProjectID: "acme"})
	assert.ErrorIs(t, err, apperrors.ErrCredential)

	_, err = New(context.Background(), warehouse.ConnectionConfig{Kind: kind, ProjectID: "acme", Credentials: map[string]any{"type": "service_account"}})
	assert.ErrorIs(t, err, apperrors.ErrCredential)
}

func TestServiceAccountJSON(t *testing.T) {
	b, err := serviceAccountJSON(map[string]any{"service_account_json": `{"type":"service_account"}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(b))

	_, err = serviceAccountJSON(map[string]any{"service_account_json": "{not json"})
	assert.Error(t, err)

	b, err = serviceAccountJSON(map[string]any{"type": "service_account", "private_key": "k"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account","private_key":"k"}`, string(b))
}

func TestClassify(t *testing.T) {
	err := classify("list datasets", &googleapi.Error{Code: http.StatusForbidden, Message: "denied"})
	assert.ErrorIs(t, err, apperrors.ErrCredential)

	err = classify("list datasets", &googleapi.Error{Code: http.StatusInternalServerError})
	assert.NotErrorIs(t, err, apperrors.ErrCredential)

	err = classify("list tables", errors.New("boom"))
	assert.Contains(t, err.Error(), "list tables")
}
