package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// ExtractionResponse is returned by POST /databases/{id}/metadata.
type ExtractionResponse struct {
	Snapshot        *models.SchemaSnapshot  `json:"snapshot"`
	Partial         bool                    `json:"partial"`
	Failures        []models.CatalogFailure `json:"failures"`
	SkippedDatasets int                     `json:"skipped_datasets"`
	SkippedTables   int                     `json:"skipped_tables"`
	ElapsedMs       int64                   `json:"elapsed_ms"`
}

// snapshotDocument is the YAML export shape.
type snapshotDocument struct {
	ConnectionID    string                 `yaml:"connection_id"`
	ExtractedAt     time.Time              `yaml:"extracted_at"`
	Checksum        string                 `yaml:"checksum"`
	SkippedDatasets int                    `yaml:"skipped_datasets"`
	SkippedTables   int                    `yaml:"skipped_tables"`
	Datasets        []models.SchemaDataset `yaml:"datasets"`
	Relationships   []models.Relationship  `yaml:"relationships,omitempty"`
	Constraints     []models.Constraint    `yaml:"constraints,omitempty"`
}

// MetadataHandler serves schema snapshots.
type MetadataHandler struct {
	extraction services.ExtractionService
	logger     *zap.Logger
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(extraction services.ExtractionService, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{
		extraction: extraction,
		logger:     logger,
	}
}

// RegisterRoutes registers the metadata handler's routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, owner OwnerMiddleware) {
	path := prefix + "/databases/{id}/metadata"
	mux.HandleFunc("POST "+path, authMiddleware.RequireAuth(owner(h.Extract)))
	mux.HandleFunc("GET "+path, authMiddleware.RequireAuth(owner(h.Get)))
}

// Extract handles POST /api/v1/databases/{id}/metadata.
func (h *MetadataHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.extraction.Extract(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Schema extraction failed")
		return
	}

	failures := result.Failures
	if failures == nil {
		failures = []models.CatalogFailure{}
	}
	writeData(w, h.logger, http.StatusOK, ExtractionResponse{
		Snapshot:        result.Snapshot,
		Partial:         result.Partial(),
		Failures:        failures,
		SkippedDatasets: result.Snapshot.SkippedDatasets,
		SkippedTables:   result.Snapshot.SkippedTables,
		ElapsedMs:       result.Elapsed.Milliseconds(),
	})
}

// Get handles GET /api/v1/databases/{id}/metadata. A connection without a
// snapshot is extracted first.
func (h *MetadataHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "yaml" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_format", "format must be json or yaml")
		return
	}

	snapshot, err := h.extraction.GetOrExtract(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get schema metadata")
		return
	}

	if format == "yaml" {
		h.writeYAML(w, snapshot)
		return
	}
	writeData(w, h.logger, http.StatusOK, snapshot)
}

func (h *MetadataHandler) writeYAML(w http.ResponseWriter, s *models.SchemaSnapshot) {
	out, err := yaml.Marshal(snapshotDocument{
		ConnectionID:    s.ConnectionID.String(),
		ExtractedAt:     s.ExtractedAt.UTC(),
		Checksum:        s.Checksum,
		SkippedDatasets: s.SkippedDatasets,
		SkippedTables:   s.SkippedTables,
		Datasets:        s.Datasets,
		Relationships:   s.Relationships,
		Constraints:     s.Constraints,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to encode schema as YAML")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		h.logger.Error("Failed to write YAML response", zap.Error(err))
	}
}
