package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Overlays connect from the local streaming machine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one overlay update pushed over the websocket.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client is one connected overlay.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// Hub fans overlay events out to every connected client. Slow clients get
// events dropped rather than stalling the broadcaster.
type Hub struct {
	clients map[*Client]bool
	mutex   sync.RWMutex
	log     zerolog.Logger
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     logger.WithComponent("overlay-hub"),
	}
}

// Broadcast sends an event to every connected overlay, never blocking.
func (h *Hub) Broadcast(event Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Msg("⚠️  Overlay client too slow, dropping event")
		}
	}
}

// ClientCount returns the number of connected overlays.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mutex.Unlock()
	h.log.Info().Int("clients", count).Msg("👤 Overlay connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mutex.Unlock()
	h.log.Info().Int("clients", count).Msg("👋 Overlay disconnected")
}

// ServeWS upgrades an overlay connection and registers it with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ Websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan Event, clientSendSize)}
	h.addClient(client)

	go client.writePump()
	go client.readPump()
}

// writePump serializes all writes to the connection.
func (c *Client) writePump() {
	defer c.conn.Close()

	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Hub closed the channel; tell the client before dropping the socket.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump exists to detect disconnects; overlays never send anything.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
