// Package realtime pushes change notifications to connected clients over
// websockets. Events carry only the table, event kind, and row id; clients
// refetch through the regular API.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Event is the wire format for change notifications.
type Event struct {
	Table string `json:"table"`
	Event string `json:"event"`
	ID    string `json:"id"`
}

// Event kinds.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Hub fans events out to all connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	tables map[string]struct{}
}

// subscribe narrows the client to the named tables. An empty list restores
// the default of receiving everything.
func (c *client) subscribe(tables []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(tables) == 0 {
		c.tables = nil
		return
	}
	c.tables = make(map[string]struct{}, len(tables))
	for _, t := range tables {
		c.tables[t] = struct{}{}
	}
}

func (c *client) wants(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables == nil {
		return true
	}
	_, ok := c.tables[table]
	return ok
}

// NewHub creates an empty hub. Origin checks are left to the CORS layer in
// front of the API.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish broadcasts an event to every connected client. Clients whose send
// buffer is full are disconnected rather than blocking the caller.
func (h *Hub) Publish(table, event, id string) {
	payload, err := json.Marshal(Event{Table: table, Event: event, ID: id})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode realtime event")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.wants(table) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Msg("Dropping slow realtime client")
		h.remove(c)
	}
}

// ServeHTTP upgrades the connection and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Ctx(r.Context()).Debug().Int("clients", count).Msg("Realtime client connected")

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes all client connections.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.conn.Close()
		close(c.send)
	}
	return ctx.Err()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		close(c.send)
	}
}

// readPump handles subscription messages and keeps the connection's read
// side alive so pings and close frames are processed. Anything that is not a
// subscribe message is ignored.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Subscribe []string `json:"subscribe"`
		}
		if err := json.Unmarshal(msg, &req); err == nil && req.Subscribe != nil {
			c.subscribe(req.Subscribe)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
