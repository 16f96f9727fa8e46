package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/model"
)

// Backups is the part of *backup.Manager the handler uses.
type Backups interface {
	Enabled() bool
	Status() backup.Status
	RunNow(ctx context.Context, passphrase string) (*model.Backup, error)
	List(ctx context.Context, limit int) ([]model.Backup, error)
}

type BackupHandler struct {
	backups Backups
	logger  *slog.Logger
}

// NewBackupHandler accepts a nil Backups; every call then answers 503.
func NewBackupHandler(b Backups, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: b, logger: logger.With("component", "backup_handler")}
}

func (h *BackupHandler) enabled(w http.ResponseWriter) bool {
	if h.backups == nil || !h.backups.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return false
	}
	return true
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	list, err := h.backups.List(r.Context(), 20)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.backups.Status(),
		"backups": list,
	})
}

func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Passphrase) == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	rec, err := h.backups.RunNow(r.Context(), req.Passphrase)
	if errors.Is(err, backup.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusBadGateway, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
