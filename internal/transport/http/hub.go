package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-room-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

// Hub tracks live connections by id and delivers outbound messages to them.
// It implements app.Notifier.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[string]*client)}
}

// Send queues msg for connectionID. Unknown connections and full buffers drop the message.
func (h *Hub) Send(connectionID string, msg domain.Message) {
	h.mu.RLock()
	c := h.clients[connectionID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode message failed", "connection_id", connectionID, "event", msg.Type, "error", err)
		return
	}
	if !c.enqueue(data) {
		h.logger.Warn("send buffer full, message dropped", "connection_id", connectionID, "event", msg.Type)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

// CloseAll shuts every connection's write side, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// client is one WebSocket connection. Only writePump writes to conn.
type client struct {
	id   string
	conn *websocket.Conn

	// room is the code of the room this connection last created or joined.
	// Only the read loop touches it.
	room string

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{id: id, conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains send and keeps the connection alive with pings.
func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("ws write failed", "connection_id", c.id, "error", err)
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
