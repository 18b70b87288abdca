//go:build duckdb || all_adapters

package duckdb

import (
	"context"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{
			Type:        kind,
			DisplayName: "DuckDB",
			Description: "Read the catalog of a local DuckDB database file",
		},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			return New(ctx, cfg)
		},
	})
}
