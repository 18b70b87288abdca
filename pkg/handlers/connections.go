package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/jsonutil"
	"github.com/ekaya-inc/t2sql-engine/pkg/models"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

// CreateConnectionRequest is the POST /databases body.
type CreateConnectionRequest struct {
	Name           string                  `json:"name"`
	ConnectionType string                  `json:"connection_type"`
	Host           string                  `json:"host"`
	Port           jsonutil.NumberOrString `json:"port"`
	DatabaseName   string                  `json:"database_name"`
	Username       string                  `json:"username"`
	ProjectID      string                  `json:"project_id"`
	Dataset        string                  `json:"dataset"`
	Credentials    map[string]any          `json:"credentials"`
}

// UpdateConnectionRequest is the PUT /databases/{id} body. Absent fields are unchanged.
type UpdateConnectionRequest struct {
	Name           *string                  `json:"name"`
	ConnectionType *string                  `json:"connection_type"`
	Host           *string                  `json:"host"`
	Port           *jsonutil.NumberOrString `json:"port"`
	DatabaseName   *string                  `json:"database_name"`
	Username       *string                  `json:"username"`
	ProjectID      *string                  `json:"project_id"`
	Dataset        *string                  `json:"dataset"`
	Credentials    map[string]any           `json:"credentials"`
}

func (r *UpdateConnectionRequest) toUpdate() *models.ConnectionUpdate {
	u := &models.ConnectionUpdate{
		Name:         r.Name,
		Kind:         r.ConnectionType,
		Host:         r.Host,
		DatabaseName: r.DatabaseName,
		Username:     r.Username,
		ProjectID:    r.ProjectID,
		Dataset:      r.Dataset,
		Credentials:  r.Credentials,
	}
	if r.Port != nil {
		port := r.Port.String()
		u.Port = &port
	}
	return u
}

// ConnectionResponse never carries credentials, only whether some are stored.
type ConnectionResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	ConnectionType string    `json:"connection_type"`
	Host           string    `json:"host,omitempty"`
	Port           string    `json:"port,omitempty"`
	DatabaseName   string    `json:"database_name,omitempty"`
	Username       string    `json:"username,omitempty"`
	ProjectID      string    `json:"project_id,omitempty"`
	Dataset        string    `json:"dataset,omitempty"`
	HasCredentials bool      `json:"has_credentials"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toConnectionResponse(c *models.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:             c.ID.String(),
		OwnerID:        c.OwnerID.String(),
		Name:           c.Name,
		ConnectionType: c.Kind,
		Host:           c.Host,
		Port:           c.Port,
		DatabaseName:   c.DatabaseName,
		Username:       c.Username,
		ProjectID:      c.ProjectID,
		Dataset:        c.Dataset,
		HasCredentials: c.HasCredentials(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ConnectionsHandler handles warehouse connection CRUD.
type ConnectionsHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(connections services.ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connections: connections,
		logger:      logger,
	}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, owner OwnerMiddleware) {
	base := prefix + "/databases"
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(owner(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(owner(h.Create)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(owner(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(owner(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(owner(h.Delete)))
	mux.HandleFunc("POST "+base+"/{id}/test", authMiddleware.RequireAuth(owner(h.Test)))
}

// List handles GET /api/v1/databases.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	conns, err := h.connections.List(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list connections")
		return
	}

	resp := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, toConnectionResponse(c))
	}
	writeData(w, h.logger, http.StatusOK, resp)
}

// Create handles POST /api/v1/databases.
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateConnectionRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	conn, err := h.connections.Create(r.Context(), ownerID, &models.Connection{
		Name:         req.Name,
		Kind:         req.ConnectionType,
		Host:         req.Host,
		Port:         req.Port.String(),
		DatabaseName: req.DatabaseName,
		Username:     req.Username,
		ProjectID:    req.ProjectID,
		Dataset:      req.Dataset,
		Credentials:  req.Credentials,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create connection")
		return
	}
	writeData(w, h.logger, http.StatusCreated, toConnectionResponse(conn))
}

// Get handles GET /api/v1/databases/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := h.connections.Get(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get connection")
		return
	}
	writeData(w, h.logger, http.StatusOK, toConnectionResponse(conn))
}

// Update handles PUT /api/v1/databases/{id}.
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateConnectionRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	conn, err := h.connections.Update(r.Context(), ownerID, id, req.toUpdate())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update connection")
		return
	}
	writeData(w, h.logger, http.StatusOK, toConnectionResponse(conn))
}

// Delete handles DELETE /api/v1/databases/{id}.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connections.Delete(r.Context(), ownerID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete connection")
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"message": "Connection deleted"})
}

// Test handles POST /api/v1/databases/{id}/test.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connections.Test(r.Context(), ownerID, id); err != nil {
		writeServiceError(w, h.logger, err, "Connection test failed")
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"message": "Connection successful"})
}
