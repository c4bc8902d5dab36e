package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/catalogops/internal/auth"
	"github.com/dukerupert/catalogops/internal/backup"
	"github.com/dukerupert/catalogops/internal/model"
)

// BackupRunner is the part of backup.Manager the handlers use.
type BackupRunner interface {
	Run(ctx context.Context, trigger model.Trigger) (backup.Result, error)
	Snapshots(ctx context.Context) ([]model.BackupSnapshot, error)
	Status() backup.Status
}

type Restorer interface {
	Run(ctx context.Context) (backup.RestoreResult, error)
}

type BackupHandler struct {
	manager  BackupRunner
	restorer Restorer
	logger   *slog.Logger
}

func NewBackupHandler(manager BackupRunner, restorer Restorer, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, restorer: restorer, logger: logger}
}

type restoreResponse struct {
	Message   string `json:"message"`
	Operation string `json:"operation"`
	Source    string `json:"source"`
}

// Restore starts an import of the newest snapshot. The import keeps running
// after the response is sent.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	res, err := h.restorer.Run(r.Context())
	if errors.Is(err, backup.ErrNoBackupAvailable) {
		writeError(w, http.StatusNotFound, "no backup available")
		return
	}
	if err != nil {
		h.logger.Error("restore failed", "subject", auth.Subject(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "restore failed")
		return
	}

	h.logger.Info("restore started", "subject", auth.Subject(r.Context()), "operation", res.Operation, "source", res.Source)
	writeJSON(w, http.StatusOK, restoreResponse{
		Message:   "restore started",
		Operation: res.Operation,
		Source:    res.Source,
	})
}

// Run performs a manual backup and waits for the export to finish.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Run(r.Context(), model.TriggerManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, backup.ErrExportStartFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, backup.ErrBackupIncomplete):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.logger.Error("manual backup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
	}
}

type listResponse struct {
	Snapshots []model.BackupSnapshot `json:"snapshots"`
	Status    backup.Status          `json:"status"`
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.manager.Snapshots(r.Context())
	if err != nil {
		h.logger.Error("list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if snapshots == nil {
		snapshots = []model.BackupSnapshot{}
	}
	writeJSON(w, http.StatusOK, listResponse{Snapshots: snapshots, Status: h.manager.Status()})
}
