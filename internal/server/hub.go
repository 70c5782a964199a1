package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket subscriber. Writes are serialized.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Hub fans analysis events out to the websocket clients subscribed to each analysis
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*client]struct{}
	logger zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*client]struct{}),
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// Publish sends event to every client of the analysis. Clients that fail
// to receive it are dropped.
func (h *Hub) Publish(analysisID string, event any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.conns[analysisID]))
	for c := range h.conns[analysisID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(event); err != nil {
			h.logger.Debug().Err(err).Str("analysis_id", analysisID).Msg("dropping dead connection")
			h.remove(analysisID, c)
			c.conn.Close()
		}
	}
}

// Count returns the number of clients subscribed to the analysis
func (h *Hub) Count(analysisID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[analysisID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.conns {
		for c := range set {
			c.conn.Close()
		}
		delete(h.conns, id)
	}
}

func (h *Hub) add(analysisID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[analysisID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[analysisID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(analysisID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[analysisID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, analysisID)
	}
}
