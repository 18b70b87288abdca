package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/apperrors"
	"github.com/ekaya-inc/t2sql-engine/pkg/config"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
	"github.com/ekaya-inc/t2sql-engine/pkg/metrics"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
)

// ExtractionService walks a connection's catalog and maintains its snapshot.
type ExtractionService interface {
	// Extract walks the catalog and atomically replaces the stored snapshot.
	// Skipped datasets and tables are reported on the result, not as errors.
	Extract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.ExtractionResult, error)

	// Get returns the stored snapshot or apperrors.ErrNotFound.
	Get(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error)

	// GetOrExtract returns the stored snapshot, extracting one first if none exists.
	GetOrExtract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error)
}

type extractionService struct {
	connections ConnectionService
	snapshots   repositories.SnapshotRepository
	opener      warehouse.Opener
	lock        ExtractionLock
	normalizer  SchemaNormalizer
	cfg         config.ExtractionConfig
	logger      *zap.Logger
}

// NewExtractionService creates a new extraction service.
func NewExtractionService(
	connections ConnectionService,
	snapshots repositories.SnapshotRepository,
	opener warehouse.Opener,
	lock ExtractionLock,
	cfg config.ExtractionConfig,
	logger *zap.Logger,
) ExtractionService {
	return &extractionService{
		connections: connections,
		snapshots:   snapshots,
		opener:      opener,
		lock:        lock,
		cfg:         cfg,
		logger:      logger.Named("extraction"),
	}
}

func (s *extractionService) Get(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	if _, err := s.connections.Get(ctx, ownerID, connectionID); err != nil {
		return nil, err
	}
	return s.snapshots.Get(ctx, connectionID)
}

func (s *extractionService) GetOrExtract(ctx context.Context, ownerID, connectionID uuid.UUID) (*models.SchemaSnapshot, error) {
	snapshot, err := s.Get(ctx, ownerID, connectionID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	s.logger.Debug("No snapshot stored, extracting", zap.String("connection_id", connectionID.String()))
	result, err := s.Extract(ctx, ownerID, connectionID)
	if err != nil {
		return nil, err
	}
	return result.Snapshot, nil
}

func (s *extractionService) Extract(ctx context.Context, ownerID, connectionID uuid.UUID) (result *models.ExtractionResult, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			metrics.ObserveExtraction(metrics.OutcomeFor(err), nil, time.Since(start))
			s.logger.Warn("Extraction failed",
				zap.String("connection_id", connectionID.String()),
				zap.Duration("elapsed", time.Since(start)),
				logging.ErrorField(err),
			)
		}
	}()

	conn, err := s.connections.Get(ctx, ownerID, connectionID)
	if err != nil {
		return nil, err
	}

	release, ok := s.lock.TryAcquire(connectionID)
	if !ok {
		return nil, &apperrors.ConflictError{ConnectionID: connectionID}
	}
	defer release()

	walkCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		walkCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	client, err := openCatalog(walkCtx, s.opener, conn, s.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	result, err = s.walk(walkCtx, conn, client)
	if err != nil {
		return nil, err
	}

	// The store write stays inside the lock's time bound.
	if err := s.snapshots.Replace(walkCtx, result.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	result.Elapsed = time.Since(start)
	outcome := metrics.OutcomeSuccess
	if result.Partial() {
		outcome = metrics.OutcomePartial
	}
	metrics.ObserveExtraction(outcome, map[string]int{
		string(models.CatalogFailureDataset): result.Snapshot.SkippedDatasets,
		string(models.CatalogFailureTable):   result.Snapshot.SkippedTables,
	}, result.Elapsed)

	s.logger.Info("Extraction complete",
		zap.String("connection_id", connectionID.String()),
		zap.String("type", conn.Kind),
		zap.Int("datasets", len(result.Snapshot.Datasets)),
		zap.Int("tables", result.Snapshot.TableCount()),
		zap.Int("relationships", len(result.Snapshot.Relationships)),
		zap.Int("skipped_datasets", result.Snapshot.SkippedDatasets),
		zap.Int("skipped_tables", result.Snapshot.SkippedTables),
		zap.String("checksum", result.Snapshot.Checksum),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// walk builds the snapshot. A dataset listing failure is fatal; a table
// listing failure skips its dataset; a schema failure skips its table.
func (s *extractionService) walk(ctx context.Context, conn *models.Connection, client warehouse.CatalogClient) (*models.ExtractionResult, error) {
	datasets, err := collectPages(ctx, func(token string) (warehouse.Page, error) {
		return client.ListDatasets(ctx, token)
	})
	if err != nil {
		return nil, catalogFailure("list datasets", err)
	}

	snapshot := &models.SchemaSnapshot{
		ConnectionID: conn.ID,
		Datasets:     make([]models.SchemaDataset, 0, len(datasets)),
	}
	result := &models.ExtractionResult{Snapshot: snapshot}

	for _, dsName := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, &apperrors.CatalogError{Op: "extract", Cause: err}
		}

		tables, err := collectPages(ctx, func(token string) (warehouse.Page, error) {
			return client.ListTables(ctx, dsName, token)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &apperrors.CatalogError{Op: "extract", Cause: ctxErr}
			}
			snapshot.SkippedDatasets++
			result.Failures = append(result.Failures, s.recordSkip(conn.ID, models.CatalogFailureDataset, dsName, "", err))
			continue
		}

		ds := s.normalizer.NewDataset(dsName)
		for _, tableName := range tables {
			fields, err := client.GetTableSchema(ctx, dsName, tableName)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, &apperrors.CatalogError{Op: "extract", Cause: ctxErr}
				}
				snapshot.SkippedTables++
				result.Failures = append(result.Failures, s.recordSkip(conn.ID, models.CatalogFailureTable, dsName, tableName, err))
				continue
			}
			s.normalizer.AppendTable(&ds, s.normalizer.NormalizeTable(tableName, fields))
		}
		snapshot.Datasets = append(snapshot.Datasets, ds)
	}

	if lister, ok := client.(warehouse.RelationshipLister); ok {
		rels, err := lister.ListRelationships(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &apperrors.CatalogError{Op: "extract", Cause: ctxErr}
			}
			result.Failures = append(result.Failures, s.recordSkip(conn.ID, models.CatalogFailureRelationships, "", "", err))
		} else {
			snapshot.Relationships = s.normalizer.NormalizeRelationships(rels)
		}
	}

	snapshot.ExtractedAt = time.Now().UTC()
	if snapshot.Checksum, err = snapshot.ComputeChecksum(); err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	return result, nil
}

func (s *extractionService) recordSkip(connectionID uuid.UUID, level models.CatalogFailureLevel, dataset, table string, err error) models.CatalogFailure {
	msg := logging.SanitizeError(err)
	s.logger.Warn("Skipping part of catalog",
		zap.String("connection_id", connectionID.String()),
		zap.String("level", string(level)),
		zap.String("dataset", dataset),
		zap.String("table", table),
		zap.String("error", msg),
	)
	return models.CatalogFailure{
		Level:   level,
		Dataset: dataset,
		Table:   table,
		Message: msg,
	}
}

// collectPages drains a paginated listing.
func collectPages(ctx context.Context, list func(token string) (warehouse.Page, error)) ([]string, error) {
	var names []string
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := list(token)
		if err != nil {
			return nil, err
		}
		names = append(names, page.Names...)
		if page.NextPageToken == "" {
			return names, nil
		}
		if page.NextPageToken == token {
			return nil, fmt.Errorf("page token %q did not advance", token)
		}
		token = page.NextPageToken
	}
}
