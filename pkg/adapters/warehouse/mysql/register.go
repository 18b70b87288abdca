package mysql

import (
	"context"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
)

func init() {
	warehouse.Register(warehouse.AdapterRegistration{
		Info: warehouse.AdapterInfo{
			Type:        kind,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+ or MariaDB",
		},
		Factory: func(ctx context.Context, cfg warehouse.ConnectionConfig) (warehouse.CatalogClient, error) {
			return New(ctx, cfg)
		},
	})
}
