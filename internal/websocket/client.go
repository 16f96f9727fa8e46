package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/shoplist/internal/state"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	readLimit      = 64 << 10
)

// Client is one websocket session bound to its own controller.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	session string
	ctrl    *state.Controller
	send    chan []byte
}

// NewClient creates a Client tied to the given hub, connection and controller.
func NewClient(hub *Hub, conn *ws.Conn, session string, ctrl *state.Controller) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		ctrl:    ctrl,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots, unsubscribe := c.ctrl.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		c.writePump(ctx, snapshots)
	}()

	c.readPump(ctx)
	cancel()
	<-done
}

// readPump decodes intent frames and applies them to the session's
// controller. A bad frame answers with an error frame and keeps the
// connection open.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(readLimit)
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			c.sendError("expected a text frame")
			continue
		}

		in, err := state.DecodeIntent(data)
		if err == nil {
			err = c.ctrl.Apply(in)
		}
		if err != nil {
			c.sendError(err.Error())
		}
	}
}

func (c *Client) sendError(msg string) {
	data, err := json.Marshal(Frame{Type: FrameError, Session: c.session, Error: msg})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump writes every controller snapshot and queued frame to the
// connection. It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context, snapshots <-chan state.State) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(Frame{Type: FrameSnapshot, Session: c.session, State: &s})
			if err != nil {
				c.hub.logger.Error("marshal snapshot", "session", c.session, "error", err)
				continue
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
