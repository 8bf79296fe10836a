package api

import (
	"context"
	"net/http"

	"github.com/okian/clash/internal/adapters/catalog"
	"github.com/okian/clash/pkg/logger"
)

// CatalogDependencies defines the interface for catalog maintenance.
type CatalogDependencies interface {
	RefreshCatalog(ctx context.Context) (catalog.Report, error)
}

// CatalogHandler handles catalog requests.
type CatalogHandler struct {
	deps CatalogDependencies
	log  logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{deps: deps, log: log}
}

// HandleRefresh handles POST /catalog/refresh. A partial failure still
// answers 200 with the failing sources marked in the report.
func (h *CatalogHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	rep, err := h.deps.RefreshCatalog(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
