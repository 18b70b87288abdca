package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// GenerateQueryRequest is the POST /query/{id}/generate body.
type GenerateQueryRequest struct {
	Question  string     `json:"question"`
	UseCaseID *uuid.UUID `json:"use_case_id,omitempty"`
}

// QueryHandler turns natural-language questions into SQL.
type QueryHandler struct {
	generator services.QueryGenerationService
	logger    *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(generator services.QueryGenerationService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		generator: generator,
		logger:    logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, owner OwnerMiddleware) {
	mux.HandleFunc("POST "+prefix+"/query/{id}/generate", authMiddleware.RequireAuth(owner(h.Generate)))
}

// Generate handles POST /api/v1/query/{id}/generate.
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateQueryRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.generator.Generate(r.Context(), ownerID, connID, models.GenerateQueryRequest{
		Question:  req.Question,
		UseCaseID: req.UseCaseID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Query generation failed")
		return
	}
	writeData(w, h.logger, http.StatusOK, result)
}
