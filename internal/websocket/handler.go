package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/shoplist/internal/state"
	"github.com/google/uuid"
)

// HandleWebSocket upgrades the connection and runs it as a session with a
// controller of its own, so filters chosen on one device stay there.
func HandleWebSocket(hub *Hub, factory *state.Factory, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // The list is shared on a trusted LAN
		})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		ctrl := factory.New(state.KindShopping)
		defer ctrl.Close()

		client := NewClient(hub, conn, uuid.NewString(), ctrl)
		client.Run(r.Context())

		conn.Close(ws.StatusNormalClosure, "")
	}
}
