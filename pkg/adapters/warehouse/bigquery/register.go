package bigquery

import (
	"context"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{
			Type:        kind,
			DisplayName: "Google BigQuery",
			Description: "Connect to a BigQuery project with a service account",
		},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			return New(ctx, cfg)
		},
	})
}
