package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/models"
)

// ReportEventType represents the type of report event
type ReportEventType string

const (
	// EventReportCreated is sent after an analysis submitted over HTTP
	EventReportCreated ReportEventType = "report_created"
	// EventReportUpdated is sent after a watched file was re-analyzed
	EventReportUpdated ReportEventType = "report_updated"
)

// ReportEvent is pushed to every connected client.
type ReportEvent struct {
	Type      ReportEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      ReportSummary   `json:"data"`
}

// ReportSummary is the compact form of a report sent over the socket.
// Clients fetch the full report by id.
type ReportSummary struct {
	ID          string                  `json:"id"`
	Source      string                  `json:"source,omitempty"`
	Score       float64                 `json:"score"`
	Status      models.Status           `json:"status"`
	Issues      int                     `json:"issues"`
	Counts      map[models.Severity]int `json:"counts"`
	Unavailable []string                `json:"unavailable"`
}

// Summarize builds the socket summary of r.
func Summarize(source string, r *analysis.Report) ReportSummary {
	return ReportSummary{
		ID:          r.ID,
		Source:      source,
		Score:       r.Quality.Total,
		Status:      r.Quality.Status,
		Issues:      len(r.Issues),
		Counts:      r.Counts(),
		Unavailable: r.Unavailable,
	}
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	once       sync.Once
	logger     *slog.Logger

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "clients", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects all clients.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

// BroadcastEvent sends an event to all connected clients. Events are
// dropped when the broadcast queue is full or the hub is stopped.
func (h *Hub) BroadcastEvent(event ReportEvent) error {
	event.Timestamp = time.Now().UTC()
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	case <-h.quit:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event", "report", event.Data.ID)
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// readPump drains the connection so pongs and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one event per frame so clients can decode each message as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
