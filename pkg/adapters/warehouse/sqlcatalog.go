package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryNames runs a keyset-paginated name query over database/sql. The query
// must take the page token and a limit as its final two arguments; it is asked
// for pageSize+1 rows so the next token can be decided without a count.
func QueryNames(ctx context.Context, db *sql.DB, query string, pageToken string, pageSize int, args ...any) (Page, error) {
	args = append(args, pageToken, pageSize+1)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0, pageSize+1)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Page{}, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate names: %w", err)
	}
	return PageOf(names, pageSize), nil
}

// ColumnRow is the common shape of an information_schema column row.
type ColumnRow struct {
	Name        string
	Type        string
	Nullable    bool
	Description sql.NullString
}

// Field converts the row into a catalog Field with NULLABLE/REQUIRED mode.
func (r ColumnRow) Field() Field {
	mode := "REQUIRED"
	if r.Nullable {
		mode = "NULLABLE"
	}
	return Field{Name: r.Name, Type: r.Type, Mode: mode, Description: r.Description.String}
}

// QueryColumns runs a column query returning (name, type, nullable, description) rows.
func QueryColumns(ctx context.Context, db *sql.DB, query string, args ...any) ([]Field, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var r ColumnRow
		if err := rows.Scan(&r.Name, &r.Type, &r.Nullable, &r.Description); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields = append(fields, r.Field())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table has no visible columns")
	}
	return fields, nil
}

// QueryRelationships scans (constraint, from schema/table/column, to schema/table/column) rows.
func QueryRelationships(ctx context.Context, db *sql.DB, query string, args ...any) ([]Relationship, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Constraint, &r.FromDataset, &r.FromTable, &r.FromColumn,
			&r.ToDataset, &r.ToTable, &r.ToColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return rels, nil
}
