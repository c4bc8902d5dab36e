package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/catalogops/internal/model"
)

type CatalogReader interface {
	Config(ctx context.Context) (map[string]any, error)
	Categories(ctx context.Context) ([]model.Category, error)
	SchemaVersion(ctx context.Context) (model.SchemaVersion, error)
}

type CatalogHandler struct {
	catalog CatalogReader
	logger  *slog.Logger
}

func NewCatalogHandler(catalog CatalogReader, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.catalog.Config(r.Context())
	if err != nil {
		h.logger.Error("read config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.Error("read categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read categories")
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CatalogHandler) Version(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.SchemaVersion(r.Context())
	if err != nil {
		h.logger.Error("read schema version", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read schema version")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
