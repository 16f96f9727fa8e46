package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shoplist/internal/grocery"
	"github.com/dukerupert/shoplist/internal/state"
)

// ListHandler exposes the shared controller over plain HTTP.
type ListHandler struct {
	ctrl   *state.Controller
	logger *slog.Logger
}

func NewListHandler(ctrl *state.Controller, logger *slog.Logger) *ListHandler {
	return &ListHandler{ctrl: ctrl, logger: logger.With("component", "list_handler")}
}

func (h *ListHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// PostIntent applies one intent and answers once it has run. Repository
// failures are reported through the state's error field, not the status.
func (h *ListHandler) PostIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large")
		return
	}

	in, err := state.DecodeIntent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.ctrl.Apply(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ctrl.Flush(r.Context()); err != nil {
		if errors.Is(err, state.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		h.logger.Warn("flush intent", "intent", in.Type, "error", err)
		writeError(w, http.StatusServiceUnavailable, "intent not applied")
		return
	}

	writeJSON(w, http.StatusAccepted, h.ctrl.State())
}

// SuggestCategory guesses a category for ?name=, preferring the spelling
// of categories already on the list.
func (h *ListHandler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":     name,
		"category": grocery.Suggest(name, h.ctrl.State().Categories),
	})
}
