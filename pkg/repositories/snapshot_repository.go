package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/t2sql-engine/pkg/models"
)

// SnapshotRepository stores the single live schema snapshot of each connection.
type SnapshotRepository interface {
	// Get returns the connection's snapshot or apperrors.ErrNotFound.
	Get(ctx context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error)

	// Replace deletes the existing snapshot and inserts s in one transaction.
	// Readers see either the old snapshot or the new one, never neither.
	Replace(ctx context.Context, s *models.SchemaSnapshot) error
}

type snapshotRepository struct{}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository() SnapshotRepository {
	return &snapshotRepository{}
}

func (r *snapshotRepository) Get(ctx context.Context, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, connection_id, metadata, checksum, skipped_datasets, skipped_tables, extracted_at
		FROM database_metadata
		WHERE connection_id = $1`

	var s models.SchemaSnapshot
	var raw []byte
	err = scope.Conn.QueryRow(ctx, query, connectionID).Scan(
		&s.ID,
		&s.ConnectionID,
		&raw,
		&s.Checksum,
		&s.SkippedDatasets,
		&s.SkippedTables,
		&s.ExtractedAt,
	)
	if err != nil {
		return nil, mapError("get snapshot", err)
	}

	// metadata holds the canonical document: datasets, relationships, constraints.
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

func (r *snapshotRepository) Replace(ctx context.Context, s *models.SchemaSnapshot) error {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return err
	}

	doc, err := s.Canonical()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if s.Checksum == "" {
		if s.Checksum, err = s.ComputeChecksum(); err != nil {
			return fmt.Errorf("failed to checksum snapshot: %w", err)
		}
	}

	if s.ExtractedAt.IsZero() {
		s.ExtractedAt = time.Now()
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, "DELETE FROM database_metadata WHERE connection_id = $1", s.ConnectionID); err != nil {
		return mapError("delete snapshot", err)
	}

	query := `
		INSERT INTO database_metadata (connection_id, metadata, checksum, skipped_datasets, skipped_tables, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err = tx.QueryRow(ctx, query,
		s.ConnectionID,
		doc,
		s.Checksum,
		s.SkippedDatasets,
		s.SkippedTables,
		s.ExtractedAt,
	).Scan(&s.ID)
	if err != nil {
		return mapError("insert snapshot", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
