package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaSnapshot is the normalized catalog of one connection at a point in time.
// There is at most one per connection; re-extraction replaces it whole.
type SchemaSnapshot struct {
	ID              uuid.UUID       `json:"id"`
	ConnectionID    uuid.UUID       `json:"connection_id"`
	Datasets        []SchemaDataset `json:"datasets"`
	Relationships   []Relationship  `json:"relationships,omitempty"`
	Constraints     []Constraint    `json:"constraints,omitempty"`
	SkippedDatasets int             `json:"skipped_datasets"`
	SkippedTables   int             `json:"skipped_tables"`
	Checksum        string          `json:"checksum"`
	ExtractedAt     time.Time       `json:"extracted_at"`
}

type SchemaDataset struct {
	Name   string        `json:"name" yaml:"name"`
	Tables []SchemaTable `json:"tables" yaml:"tables"`
}

type SchemaTable struct {
	Name    string         `json:"name" yaml:"name"`
	Columns []SchemaColumn `json:"columns" yaml:"columns"`
}

// SchemaColumn is the canonical column shape. Mode is "NULLABLE", "REQUIRED",
// "REPEATED" or empty when the warehouse does not report one.
type SchemaColumn struct {
	Name        string  `json:"name" yaml:"name"`
	Type        string  `json:"type" yaml:"type"`
	Mode        string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Relationship is a foreign-key style link between two columns.
type Relationship struct {
	Constraint  string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	FromDataset string `json:"from_dataset" yaml:"from_dataset"`
	FromTable   string `json:"from_table" yaml:"from_table"`
	FromColumn  string `json:"from_column" yaml:"from_column"`
	ToDataset   string `json:"to_dataset" yaml:"to_dataset"`
	ToTable     string `json:"to_table" yaml:"to_table"`
	ToColumn    string `json:"to_column" yaml:"to_column"`
}

// Constraint is reserved for warehouses that expose table constraints.
type Constraint struct {
	Dataset string   `json:"dataset" yaml:"dataset"`
	Table   string   `json:"table" yaml:"table"`
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"`
	Columns []string `json:"columns" yaml:"columns"`
}

type canonicalSnapshot struct {
	Datasets      []SchemaDataset `json:"datasets"`
	Relationships []Relationship  `json:"relationships,omitempty"`
	Constraints   []Constraint    `json:"constraints,omitempty"`
}

// Canonical returns the JSON encoding of the catalog content only (no ids or
// timestamps). Two extractions of an unchanged warehouse produce identical bytes.
func (s *SchemaSnapshot) Canonical() ([]byte, error) {
	datasets := s.Datasets
	if datasets == nil {
		datasets = []SchemaDataset{}
	}
	return json.Marshal(canonicalSnapshot{
		Datasets:      datasets,
		Relationships: s.Relationships,
		Constraints:   s.Constraints,
	})
}

// ComputeChecksum returns the sha256 hex digest of Canonical().
func (s *SchemaSnapshot) ComputeChecksum() (string, error) {
	b, err := s.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// TableCount returns the number of tables across all datasets.
func (s *SchemaSnapshot) TableCount() int {
	n := 0
	for _, ds := range s.Datasets {
		n += len(ds.Tables)
	}
	return n
}

// CatalogFailureLevel names the enumeration level at which a skip happened.
type CatalogFailureLevel string

const (
	CatalogFailureDataset       CatalogFailureLevel = "dataset"
	CatalogFailureTable         CatalogFailureLevel = "table"
	CatalogFailureRelationships CatalogFailureLevel = "relationships"
)

// CatalogFailure records one absorbed partial catalog failure.
type CatalogFailure struct {
	Level   CatalogFailureLevel `json:"level"`
	Dataset string              `json:"dataset,omitempty"`
	Table   string              `json:"table,omitempty"`
	Message string              `json:"message"`
}

// ExtractionResult is a successful extraction. Failures is non-empty when the
// snapshot is incomplete.
type ExtractionResult struct {
	Snapshot *SchemaSnapshot  `json:"snapshot"`
	Failures []CatalogFailure `json:"failures,omitempty"`
	Elapsed  time.Duration    `json:"-"`
}

// SkipCount is the total number of skipped datasets and tables.
func (r *ExtractionResult) SkipCount() int {
	if r.Snapshot == nil {
		return 0
	}
	return r.Snapshot.SkippedDatasets + r.Snapshot.SkippedTables
}

// Partial reports whether any part of the catalog was skipped.
func (r *ExtractionResult) Partial() bool {
	return len(r.Failures) > 0
}
