package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsHandler serves the same event stream as /api/events over a websocket,
// for clients that prefer a bidirectional transport
func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := make(chan Event)
		s.hub.register <- client

		// Reader pump: we accept no client messages, but reading is how
		// close frames and dead peers are detected
		go func() {
			defer func() {
				s.hub.unregister <- client
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for event := range client {
			if err := conn.WriteJSON(event); err != nil {
				conn.Close()
				return
			}
		}
	}
}
