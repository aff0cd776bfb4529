package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"petscan/internal/logging"
	"petscan/internal/metrics"
	"petscan/internal/scan"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans published scan states out to websocket clients. Only the Run
// goroutine writes to client connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	snapshot   func() scan.State
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. snapshot supplies the state sent to clients when
// they connect.
func NewHub(snapshot func() scan.State) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		snapshot:   snapshot,
		done:       make(chan struct{}),
	}
}

// Run delivers every state from updates until ctx ends or updates closes,
// then disconnects all clients.
func (h *Hub) Run(ctx context.Context, updates <-chan scan.State) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.clients[conn] = true
			h.setCount(len(h.clients))
			logging.Debug("Scan event client connected. Total: %d", len(h.clients))
			if h.snapshot != nil {
				h.send(conn, h.snapshot().Summary())
			}

		case conn := <-h.unregister:
			h.remove(conn)

		case state, ok := <-updates:
			if !ok {
				return
			}
			message, err := json.Marshal(state.Summary())
			if err != nil {
				logging.Error("failed to encode scan event: %v", err)
				continue
			}
			for conn := range h.clients {
				h.write(conn, websocket.TextMessage, message)
			}

		case <-ping.C:
			for conn := range h.clients {
				h.write(conn, websocket.PingMessage, nil)
			}
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, state scan.State) {
	message, err := json.Marshal(state)
	if err != nil {
		logging.Error("failed to encode scan event: %v", err)
		return
	}
	h.write(conn, websocket.TextMessage, message)
}

func (h *Hub) write(conn *websocket.Conn, messageType int, data []byte) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
		err = conn.WriteMessage(messageType, data)
		if err == nil {
			return
		}
		logging.Debug("Scan event write failed: %v", err)
	}
	h.remove(conn)
}

func (h *Hub) remove(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	h.setCount(len(h.clients))
	logging.Debug("Scan event client disconnected. Total: %d", len(h.clients))
}

func (h *Hub) closeAll() {
	close(h.done)
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		h.remove(conn)
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Register hands conn to the hub. It reports false once the hub stopped.
func (h *Hub) Register(conn *websocket.Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes conn from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// ScanEvents upgrades the request to a websocket that receives every
// published scan state, without result lists.
func (h *Handlers) ScanEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if !h.events.Register(conn) {
		conn.Close()
		return
	}
	defer h.events.Unregister(conn)

	// Clients only send control frames; reading keeps pongs flowing and
	// notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
