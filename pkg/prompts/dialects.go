package prompts

// Dialect is the SQL flavour a prompt asks for.
type Dialect struct {
	// Name is used in the prompt text, e.g. "BigQuery".
	Name  string
	Rules []string
}

var bigQueryDialect = Dialect{
	Name: "BigQuery",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Include clear column names (dataset.table.column) to avoid ambiguity",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed",
		"Use BigQuery-specific functions and syntax",
		"Ensure the query is optimized for BigQuery performance",
		"Use appropriate date/time functions for BigQuery",
		"Consider BigQuery's columnar storage model when writing queries",
	},
}

var postgresDialect = Dialect{
	Name: "PostgreSQL",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Qualify tables with their schema (schema.table) and alias them to avoid ambiguous column names",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed",
		"Use PostgreSQL functions and syntax, such as ILIKE, COALESCE and FILTER clauses",
		"Prefer sargable predicates and avoid functions on indexed columns in WHERE clauses",
		"Use date_trunc, EXTRACT and interval arithmetic for date/time logic",
	},
}

var mssqlDialect = Dialect{
	Name: "SQL Server (T-SQL)",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Qualify tables with their schema (schema.table) and use square brackets for identifiers that need quoting",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed",
		"Use T-SQL functions and syntax, such as TOP instead of LIMIT and ISNULL or COALESCE",
		"Prefer sargable predicates so indexes can be used",
		"Use DATEADD, DATEDIFF, DATEPART and EOMONTH for date/time logic",
	},
}

var mysqlDialect = Dialect{
	Name: "MySQL",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Qualify tables with their database (database.table) and quote identifiers with backticks when needed",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed, listing every non-aggregated column",
		"Use MySQL functions and syntax, such as IFNULL, GROUP_CONCAT and LIMIT",
		"Prefer sargable predicates so indexes can be used",
		"Use DATE_FORMAT, DATE_SUB, TIMESTAMPDIFF and CURDATE for date/time logic",
	},
}

var sqliteDialect = Dialect{
	Name: "SQLite",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Use table aliases to keep column references unambiguous",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed",
		"Use SQLite functions and syntax, such as IFNULL, GROUP_CONCAT and LIMIT",
		"Filter early and select only the columns you need",
		"Use date(), datetime(), strftime() and julianday() for date/time logic",
	},
}

var duckdbDialect = Dialect{
	Name: "DuckDB",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Qualify tables with their schema (schema.table) to avoid ambiguity",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed; GROUP BY ALL is available",
		"Use DuckDB functions and syntax, such as QUALIFY, list functions and string_agg",
		"Select only the columns you need since storage is columnar",
		"Use date_trunc, date_diff, strftime and interval arithmetic for date/time logic",
	},
}

var ansiDialect = Dialect{
	Name: "ANSI",
	Rules: []string{
		"Use appropriate JOIN clauses based on the table relationships",
		"Qualify column names with their table to avoid ambiguity",
		"Use appropriate WHERE clauses to filter data",
		"Use appropriate GROUP BY and aggregation functions when needed",
		"Use only standard SQL functions and syntax",
		"Avoid unnecessary subqueries and select only the columns you need",
		"Use standard CAST, EXTRACT and CURRENT_DATE for date/time logic",
	},
}

var dialects = map[string]Dialect{
	"bigquery": bigQueryDialect,
	"postgres": postgresDialect,
	"mssql":    mssqlDialect,
	"mysql":    mysqlDialect,
	"sqlite":   sqliteDialect,
	"duckdb":   duckdbDialect,
}

// DialectFor returns the dialect for a connection kind. Unknown kinds get ANSI SQL.
func DialectFor(kind string) Dialect {
	if d, ok := dialects[kind]; ok {
		return d
	}
	return ansiDialect
}
