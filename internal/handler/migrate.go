package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/catalogops/internal/migrate"
)

type Migrator interface {
	Run(ctx context.Context, dryRun bool) (migrate.Result, error)
}

type MigrateHandler struct {
	migrator Migrator
	logger   *slog.Logger
}

func NewMigrateHandler(migrator Migrator, logger *slog.Logger) *MigrateHandler {
	return &MigrateHandler{migrator: migrator, logger: logger}
}

type migrateResponse struct {
	OK bool `json:"ok"`
	migrate.Result
}

type alreadyMigratedResponse struct {
	OK              bool `json:"ok"`
	AlreadyMigrated bool `json:"alreadyMigrated"`
	Schema          int  `json:"schema"`
}

// Migrate runs the legacy migration. ?dryRun=true computes the statistics
// without writing.
func (h *MigrateHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dryRun"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dryRun")
			return
		}
		dryRun = b
	}

	res, err := h.migrator.Run(r.Context(), dryRun)
	if errors.Is(err, migrate.ErrLegacyNotFound) {
		writeError(w, http.StatusNotFound, "legacy document not found")
		return
	}
	if err != nil {
		h.logger.Error("migration failed", "dry_run", dryRun, "error", err)
		writeError(w, http.StatusInternalServerError, "migration failed")
		return
	}
	if res.AlreadyMigrated {
		writeJSON(w, http.StatusOK, alreadyMigratedResponse{OK: true, AlreadyMigrated: true, Schema: res.Schema})
		return
	}
	writeJSON(w, http.StatusOK, migrateResponse{OK: true, Result: res})
}
