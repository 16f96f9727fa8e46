package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/shoplist/internal/metrics"
	"github.com/dukerupert/shoplist/internal/state"
)

// Frame types sent by the server.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
	FrameSettings = "settings"
)

// Frame is one server-to-client message.
type Frame struct {
	Type    string       `json:"type"`
	Session string       `json:"session,omitempty"`
	State   *state.State `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`
	Theme   string       `json:"theme,omitempty"`
}

// Hub keeps the set of live sessions. Each session owns its controller;
// the hub only fans out frames that concern every session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(rec metrics.Recorder, logger *slog.Logger) *Hub {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: rec,
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientConnected()
	h.logger.Debug("session opened", "session", c.session)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.metrics.ClientDisconnected()
		h.logger.Debug("session closed", "session", c.session)
	}
}

// Broadcast sends a frame to all connected clients.
func (h *Hub) Broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full; drop rather than block
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every connection with StatusGoingAway. Used on shutdown,
// since hijacked connections outlive http.Server.Shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*ws.Conn, 0, len(h.clients))
	for c := range h.clients {
		if c.conn != nil {
			conns = append(conns, c.conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(ws.StatusGoingAway, "server shutting down")
	}
}
