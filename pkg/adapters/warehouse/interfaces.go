package warehouse

import "context"

// Page is one page of catalog names. An empty NextPageToken means the listing is complete.
type Page struct {
	Names         []string
	NextPageToken string
}

// Field is one column as the warehouse reports it, before normalization.
type Field struct {
	Name        string
	Type        string
	Mode        string // "NULLABLE", "REQUIRED", "REPEATED" or empty
	Description string
}

// Relationship is a foreign key reported by the warehouse.
type Relationship struct {
	Constraint  string
	FromDataset string
	FromTable   string
	FromColumn  string
	ToDataset   string
	ToTable     string
	ToColumn    string
}

// CatalogClient walks a warehouse catalog with the connection's credentials.
// Each implementation owns its connection and must be closed when done.
type CatalogClient interface {
	// ListDatasets returns one page of dataset (schema/database) names.
	ListDatasets(ctx context.Context, pageToken string) (Page, error)

	// ListTables returns one page of table names within a dataset.
	ListTables(ctx context.Context, dataset, pageToken string) (Page, error)

	// GetTableSchema returns the table's fields in declared order.
	GetTableSchema(ctx context.Context, dataset, table string) ([]Field, error)

	// Close releases the underlying connection.
	Close() error
}

// RelationshipLister is implemented by clients whose warehouse exposes foreign keys.
type RelationshipLister interface {
	ListRelationships(ctx context.Context) ([]Relationship, error)
}
