package main

// Warehouse adapters register themselves on import.
import (
	_ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/bigquery"
	_ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/mssql"
	_ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/mysql"
	_ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/postgres"
	_ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/sqlite"
)
