package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// upgrader builds the websocket upgrader honoring the CORS origins.
func (s *Server) upgrader() websocket.Upgrader {
	origins := s.config.Security.AllowedOrigins
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// HandleWebSocket streams report events to the client.
func (s *Server) HandleWebSocket(c echo.Context) error {
	up := s.upgrader()
	ws, err := up.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		s.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	client := &Client{
		hub:  s.wsHub,
		conn: ws,
		send: make(chan []byte, 256),
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.quit:
		_ = ws.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return nil
}

// GetWebSocketStats returns WebSocket connection statistics
func (s *Server) GetWebSocketStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"connected_clients": s.wsHub.ClientCount(),
		"status":            "operational",
	})
}
