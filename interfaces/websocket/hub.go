package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Hub tracks live connections and the rooms each one subscribed to.
// Every write to a client's send buffer happens under the read lock and
// buffers are closed under the write lock, so a frame is never sent on a
// closed channel.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client // roomID -> connID -> client
	mu      sync.RWMutex

	sent    atomic.Int64
	dropped atomic.Int64

	logger *zap.Logger
}

// HubStats is a snapshot of the hub counters
type HubStats struct {
	Connections int
	Rooms       int
	Sent        int64
	Dropped     int64
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Run logs hub statistics until ctx is done, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAll()
			return
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Debug("Hub health check",
				zap.Int("connections", stats.Connections),
				zap.Int("rooms", stats.Rooms),
				zap.Int64("sent", stats.Sent),
				zap.Int64("dropped", stats.Dropped),
			)
		}
	}
}

// Register adds a client connection
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("Client registered", zap.String("connectionID", c.id))
}

// Unregister removes a client and its room subscriptions and closes its
// send buffer. Returns false if the client was already gone.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remove(c)
}

func (h *Hub) remove(c *Client) bool {
	if current, ok := h.clients[c.id]; !ok || current != c {
		return false
	}
	delete(h.clients, c.id)
	for roomID, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(c.send)
	h.logger.Debug("Client unregistered", zap.String("connectionID", c.id))
	return true
}

// Join subscribes connID to roomID
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connID] = c
}

// Leave unsubscribes connID from roomID
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// InRoom reports whether connID is subscribed to roomID
func (h *Hub) InRoom(connID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][connID]
	return ok
}

// EmitTo sends a frame to a single connection
func (h *Hub) EmitTo(connID string, frame Outbound) {
	h.EmitToConnections([]string{connID}, frame)
}

// EmitToConnections sends a frame to every listed connection that is
// still registered
func (h *Hub) EmitToConnections(connIDs []string, frame Outbound) {
	if len(connIDs) == 0 {
		return
	}
	data, ok := h.encode(frame)
	if !ok {
		return
	}

	h.mu.RLock()
	var slow []*Client
	for _, id := range connIDs {
		if c, ok := h.clients[id]; ok && !h.deliver(c, data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

// EmitToRoom sends a frame to every connection subscribed to roomID.
// A non-empty except skips that connection.
func (h *Hub) EmitToRoom(roomID, except string, frame Outbound) {
	data, ok := h.encode(frame)
	if !ok {
		return
	}

	h.mu.RLock()
	var slow []*Client
	for id, c := range h.rooms[roomID] {
		if id == except {
			continue
		}
		if !h.deliver(c, data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

// Disconnect unregisters connID and closes its transport
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		h.remove(c)
	}
	h.mu.Unlock()
	if ok {
		c.closeConn()
	}
}

// Stats returns the current hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Connections: len(h.clients),
		Rooms:       len(h.rooms),
		Sent:        h.sent.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// deliver must be called with the read lock held
func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		h.sent.Add(1)
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// evict closes clients whose send buffer overflowed
func (h *Hub) evict(slow []*Client) {
	for _, c := range slow {
		h.logger.Warn("Closing slow client", zap.String("connectionID", c.id))
		h.mu.Lock()
		h.remove(c)
		h.mu.Unlock()
		c.closeConn()
	}
}

func (h *Hub) encode(frame Outbound) ([]byte, bool) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to marshal frame",
			zap.String("event", frame.Event),
			zap.Error(err),
		)
		return nil, false
	}
	return data, true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
		h.remove(c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeConn()
	}
	h.logger.Info("All connections closed", zap.Int("count", len(clients)))
}
