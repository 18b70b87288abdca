package services

import (
	"strings"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// UnknownColumnType stands in for a column whose warehouse type is empty.
const UnknownColumnType = "UNKNOWN"

// SchemaNormalizer turns warehouse-native catalog entries into canonical
// snapshot shapes. Dataset, table and column order is whatever the catalog
// returned; nothing is sorted here.
type SchemaNormalizer struct{}

// NormalizeTable converts one table's fields, preserving field order.
func (SchemaNormalizer) NormalizeTable(name string, fields []warehouse.Field) models.SchemaTable {
	columns := make([]models.SchemaColumn, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, normalizeColumn(f))
	}
	return models.SchemaTable{
		Name:    strings.TrimSpace(name),
		Columns: columns,
	}
}

// NewDataset starts an empty dataset.
func (SchemaNormalizer) NewDataset(name string) models.SchemaDataset {
	return models.SchemaDataset{
		Name:   strings.TrimSpace(name),
		Tables: []models.SchemaTable{},
	}
}

// AppendTable adds a table at the end of the dataset.
func (SchemaNormalizer) AppendTable(ds *models.SchemaDataset, table models.SchemaTable) {
	ds.Tables = append(ds.Tables, table)
}

// NormalizeRelationships converts warehouse foreign keys.
func (SchemaNormalizer) NormalizeRelationships(rels []warehouse.Relationship) []models.Relationship {
	if len(rels) == 0 {
		return nil
	}
	out := make([]models.Relationship, 0, len(rels))
	for _, r := range rels {
		out = append(out, models.Relationship{
			Constraint:  r.Constraint,
			FromDataset: r.FromDataset,
			FromTable:   r.FromTable,
			FromColumn:  r.FromColumn,
			ToDataset:   r.ToDataset,
			ToTable:     r.ToTable,
			ToColumn:    r.ToColumn,
		})
	}
	return out
}

func normalizeColumn(f warehouse.Field) models.SchemaColumn {
	col := models.SchemaColumn{
		Name: strings.TrimSpace(f.Name),
		Type: strings.TrimSpace(f.Type),
		Mode: strings.ToUpper(strings.TrimSpace(f.Mode)),
	}
	if col.Type == "" {
		col.Type = UnknownColumnType
	}
	if desc := strings.TrimSpace(f.Description); desc != "" {
		col.Description = &desc
	}
	return col
}
