package mssql

import (
	"context"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{
			Type:        kind,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+ or Azure SQL with SQL or service principal auth",
		},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			msCfg, err := FromConnectionConfig(cfg)
			if err != nil {
				return nil, err
			}
			return New(ctx, msCfg)
		},
	})
}
