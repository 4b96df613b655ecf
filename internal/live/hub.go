// Package live pushes rebuild notifications to browsers over a websocket so pages
// served by `mxc serve` reload when their modules change.
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recera/mxc/internal/diag"
)

// Message types
const (
	TypeHello       = "HELLO"
	TypeAck         = "ACK"
	TypeReload      = "RELOAD"
	TypeDiagnostics = "DIAGNOSTICS"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Message is the JSON frame exchanged with the browser
type Message struct {
	Type        string    `json:"type"`
	Files       []string  `json:"files,omitempty"`
	Diagnostics diag.List `json:"diagnostics,omitempty"`
}

// Hub tracks connected browsers and broadcasts messages to them
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
	// last is the latest diagnostics message, replayed to browsers that connect later
	last   []byte
	closed bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewHub creates a hub that accepts connections from any origin
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// the dev server only listens locally
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]bool),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	go c.writer()
	h.read(c)
}

func (h *Hub) read(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		switch msg.Type {
		case TypeHello:
			data, _ := json.Marshal(Message{Type: TypeAck})
			c.enqueue(data)
		default:
			log.Printf("Unknown WebSocket message type: %q", msg.Type)
		}
	}
}

func (c *client) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// enqueue queues data without blocking; a client too slow to drain its buffer is
// disconnected and will reconnect to a fresh state
func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast sends msg to every connected browser
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	if msg.Type == TypeDiagnostics {
		h.last = data
	}
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

// Reload tells browsers that the modules generated from files changed
func (h *Hub) Reload(files []string) {
	h.Broadcast(Message{Type: TypeReload, Files: files})
}

// Diagnostics publishes the diagnostics of the latest build. An empty list clears
// the browser overlay.
func (h *Hub) Diagnostics(l diag.List) {
	h.Broadcast(Message{Type: TypeDiagnostics, Diagnostics: l.Sorted()})
}

// Clients returns the number of connected browsers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every browser and rejects new connections
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
