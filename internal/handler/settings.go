package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
	"github.com/dukerupert/shoplist/internal/websocket"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, hub: hub, logger: logger.With("component", "settings_handler")}
}

func (h *SettingsHandler) broadcast(f websocket.Frame) {
	if h.hub != nil {
		h.hub.Broadcast(f)
	}
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (h *SettingsHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settingsStore.Theme(r.Context())
	if err != nil {
		h.logger.Error("get theme", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get theme")
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: string(theme)})
}

func (h *SettingsHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var req themeBody
	if !decodeBody(w, r, &req) {
		return
	}

	theme, ok := model.ParseTheme(req.Theme)
	if !ok {
		writeError(w, http.StatusBadRequest, "theme must be one of system, light, dark")
		return
	}

	if err := h.settingsStore.SetTheme(r.Context(), theme); err != nil {
		h.logger.Error("set theme", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	h.broadcast(websocket.Frame{Type: websocket.FrameSettings, Theme: string(theme)})
	writeJSON(w, http.StatusOK, themeBody{Theme: string(theme)})
}
