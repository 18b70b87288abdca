package postgres

import (
	"context"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{
			Type:        kind,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			pgCfg, err := FromConnectionConfig(cfg)
			if err != nil {
				return nil, err
			}
			return New(ctx, pgCfg)
		},
	})
}
