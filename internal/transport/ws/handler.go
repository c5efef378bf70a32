package ws

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket and attaches the
// connection to hub. originPatterns lists the hosts allowed to connect.
func ServeWS(hub *Hub, originPatterns []string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("ws: accept error", zap.Error(err))
			return
		}

		// the request context ends when this handler returns
		ctx, cancel := context.WithCancel(context.Background())
		client := NewClient(hub, conn, logger)
		if !hub.add(r.Context(), client) {
			cancel()
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		go func() {
			client.WritePump(ctx)
			cancel()
		}()
		go func() {
			client.ReadPump(ctx)
			cancel()
		}()
	}
}
