package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
)

// AdaptersHandler lists the warehouse kinds compiled into this build.
type AdaptersHandler struct {
	logger *zap.Logger
}

// NewAdaptersHandler creates a new adapters handler.
func NewAdaptersHandler(logger *zap.Logger) *AdaptersHandler {
	return &AdaptersHandler{logger: logger}
}

// RegisterRoutes registers the adapters handler's routes on the given mux.
func (h *AdaptersHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET "+prefix+"/adapters", authMiddleware.RequireAuth(h.List))
}

// List handles GET /api/v1/adapters.
func (h *AdaptersHandler) List(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, warehouse.RegisteredAdapters())
}
