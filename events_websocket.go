package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventMessage is the JSON message broadcast to monitoring clients
type EventMessage struct {
	Type      string  `json:"type"` // "decode" or "gate"
	Timestamp string  `json:"timestamp"`
	Code      string  `json:"code,omitempty"` // octal notation, e.g. "D023N"
	Inverted  bool    `json:"inverted,omitempty"`
	Open      bool    `json:"open"`
	TailMs    float64 `json:"tail_ms"`
}

// EventWebSocketHandler manages WebSocket connections for live decode
// and gate state monitoring
type EventWebSocketHandler struct {
	clients   map[*websocket.Conn]*sync.Mutex // Each connection has its own write mutex
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader

	// Recent event buffer replayed to new connections
	recent    []EventMessage
	recentMu  sync.RWMutex
	maxRecent int
}

// NewEventWebSocketHandler creates a new event WebSocket handler
func NewEventWebSocketHandler() *EventWebSocketHandler {
	return &EventWebSocketHandler{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		maxRecent: 50,
	}
}

// HandleWebSocket upgrades an HTTP request and serves events until the
// client disconnects
func (h *EventWebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()[:8]

	writeMu := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = writeMu
	h.clientsMu.Unlock()

	log.Printf("WS: Client %s connected from %s", clientID, r.RemoteAddr)

	// Replay buffered events so a new client sees recent activity
	h.recentMu.RLock()
	replay := make([]EventMessage, len(h.recent))
	copy(replay, h.recent)
	h.recentMu.RUnlock()

	for _, msg := range replay {
		if err := h.writeJSON(conn, writeMu, msg); err != nil {
			break
		}
	}

	// Read loop: discard client messages, detect disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	conn.Close()

	log.Printf("WS: Client %s disconnected", clientID)
}

// BroadcastDecode broadcasts a decode event to all connected clients
func (h *EventWebSocketHandler) BroadcastDecode(code string, inverted bool, open bool, tailMs float64) {
	h.broadcast(EventMessage{
		Type:      "decode",
		Timestamp: time.Now().Format(time.RFC3339),
		Code:      code,
		Inverted:  inverted,
		Open:      open,
		TailMs:    tailMs,
	})
}

// BroadcastGateState broadcasts a gate state change to all connected clients
func (h *EventWebSocketHandler) BroadcastGateState(open bool, tailMs float64) {
	h.broadcast(EventMessage{
		Type:      "gate",
		Timestamp: time.Now().Format(time.RFC3339),
		Open:      open,
		TailMs:    tailMs,
	})
}

// broadcast sends a message to every client and records it in the
// replay buffer
func (h *EventWebSocketHandler) broadcast(msg EventMessage) {
	h.recentMu.Lock()
	h.recent = append(h.recent, msg)
	if len(h.recent) > h.maxRecent {
		h.recent = h.recent[len(h.recent)-h.maxRecent:]
	}
	h.recentMu.Unlock()

	h.clientsMu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, mu := range h.clients {
		conns[c] = mu
	}
	h.clientsMu.RUnlock()

	for conn, mu := range conns {
		if err := h.writeJSON(conn, mu, msg); err != nil {
			// Reader loop notices the dead connection and unregisters it
			continue
		}
	}
}

// writeJSON writes one message under the connection's write mutex
func (h *EventWebSocketHandler) writeJSON(conn *websocket.Conn, mu *sync.Mutex, msg EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
