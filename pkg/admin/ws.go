package admin

import (
	"github.com/gofiber/websocket/v2"

	"github.com/voxdial/scheduler/pkg/debugbus"
)

// handleDebugWS streams one session's debug events to a connected admin
// client: the recent log first, then live events until the socket closes.
// Auth here uses ?token= (a WS upgrade request can't carry a bearer header),
// closing with 4003/4001 per the same matrix requireAdminToken enforces for
// plain HTTP routes.
func (s *Server) handleDebugWS(c *websocket.Conn) {
	sessionID := c.Params("id")
	if !validID(sessionID) {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4000, "invalid session id"))
		c.Close()
		return
	}

	ok, closeCode := requireAdminWS(s.apiKey, s.debugOpen, c.Query("token"))
	if !ok {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, "unauthorized"))
		c.Close()
		return
	}

	broadcaster := debugbus.Get(sessionID)
	if broadcaster == nil {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4004, "no such session"))
		c.Close()
		return
	}

	for _, evt := range broadcaster.EventLog() {
		if c.WriteJSON(evt) != nil {
			return
		}
	}

	events, unsubscribe := broadcaster.Subscribe()
	defer unsubscribe()

	// Drain client-initiated reads (ping/close detection); the connection is
	// otherwise server-push only.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-events:
			if !ok || c.WriteJSON(evt) != nil {
				return
			}
		}
	}
}
