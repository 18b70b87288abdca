package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// CreateUseCaseRequest is the POST /databases/{id}/use-cases body.
type CreateUseCaseRequest struct {
	Title                  string `json:"title"`
	Description            string `json:"description"`
	NaturalLanguageExample string `json:"natural_language_example"`
	ExampleQuery           string `json:"example_query"`
}

// UpdateUseCaseRequest is a partial update; absent fields are unchanged.
type UpdateUseCaseRequest struct {
	Title                  *string `json:"title"`
	Description            *string `json:"description"`
	NaturalLanguageExample *string `json:"natural_language_example"`
	ExampleQuery           *string `json:"example_query"`
}

// UseCasesHandler handles use case CRUD nested under a connection.
type UseCasesHandler struct {
	useCases services.UseCaseService
	logger   *zap.Logger
}

// NewUseCasesHandler creates a new use cases handler.
func NewUseCasesHandler(useCases services.UseCaseService, logger *zap.Logger) *UseCasesHandler {
	return &UseCasesHandler{
		useCases: useCases,
		logger:   logger,
	}
}

// RegisterRoutes registers the use cases handler's routes on the given mux.
func (h *UseCasesHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, owner OwnerMiddleware) {
	base := prefix + "/databases/{id}/use-cases"
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(owner(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(owner(h.Create)))
	mux.HandleFunc("GET "+base+"/{ucid}", authMiddleware.RequireAuth(owner(h.Get)))
	mux.HandleFunc("PUT "+base+"/{ucid}", authMiddleware.RequireAuth(owner(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{ucid}", authMiddleware.RequireAuth(owner(h.Delete)))
}

// List handles GET /api/v1/databases/{id}/use-cases.
func (h *UseCasesHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	useCases, err := h.useCases.List(r.Context(), ownerID, connID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list use cases")
		return
	}
	if useCases == nil {
		useCases = []models.UseCase{}
	}
	writeData(w, h.logger, http.StatusOK, useCases)
}

// Create handles POST /api/v1/databases/{id}/use-cases.
func (h *UseCasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateUseCaseRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	uc, err := h.useCases.Create(r.Context(), ownerID, connID, &models.UseCase{
		Title:                  req.Title,
		Description:            req.Description,
		NaturalLanguageExample: req.NaturalLanguageExample,
		ExampleQuery:           req.ExampleQuery,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create use case")
		return
	}
	writeData(w, h.logger, http.StatusCreated, uc)
}

// Get handles GET /api/v1/databases/{id}/use-cases/{ucid}.
func (h *UseCasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, connID, id, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	uc, err := h.useCases.Get(r.Context(), ownerID, connID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get use case")
		return
	}
	writeData(w, h.logger, http.StatusOK, uc)
}

// Update handles PUT /api/v1/databases/{id}/use-cases/{ucid}.
func (h *UseCasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, connID, id, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req UpdateUseCaseRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	uc, err := h.useCases.Update(r.Context(), ownerID, connID, id, &models.UseCaseUpdate{
		Title:                  req.Title,
		Description:            req.Description,
		NaturalLanguageExample: req.NaturalLanguageExample,
		ExampleQuery:           req.ExampleQuery,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update use case")
		return
	}
	writeData(w, h.logger, http.StatusOK, uc)
}

// Delete handles DELETE /api/v1/databases/{id}/use-cases/{ucid}.
func (h *UseCasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, connID, id, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	if err := h.useCases.Delete(r.Context(), ownerID, connID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete use case")
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"message": "Use case deleted"})
}

func (h *UseCasesHandler) parseIDs(w http.ResponseWriter, r *http.Request) (ownerID, connID, id uuid.UUID, ok bool) {
	if ownerID, ok = requireOwner(w, r, h.logger); !ok {
		return
	}
	if connID, ok = ParseConnectionID(w, r, h.logger); !ok {
		return
	}
	id, ok = ParseUseCaseID(w, r, h.logger)
	return
}
