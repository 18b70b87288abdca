//go:build duckdb || all_adapters

package main

// DuckDB links libduckdb through cgo, so it is opt-in.
import _ "github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse/duckdb"
