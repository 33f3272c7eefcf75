package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Send buffer size
	sendBufferSize = 256
)

// Handler processes the frames of a connection
type Handler interface {
	// Dispatch handles one inbound frame. Frames of a connection are
	// dispatched one at a time in arrival order.
	Dispatch(ctx context.Context, c *Client, in Inbound)

	// Disconnect runs once after the connection is gone
	Disconnect(ctx context.Context, c *Client)
}

// Client represents a WebSocket client connection
type Client struct {
	id        string // Unique connection ID
	boundUser string // Email from the upgrade token, empty when unauthenticated
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte // Buffered channel of outbound frames
	handler   Handler
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewClient creates a new WebSocket client
func NewClient(boundUser string, hub *Hub, conn *websocket.Conn, handler Handler, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:        id,
		boundUser: boundUser,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		handler:   handler,
		logger:    logger.With(zap.String("connectionID", id)),
	}
}

// Start registers the client and begins its read and write pumps
func (c *Client) Start(ctx context.Context) {
	c.hub.Register(c)

	go c.writePump()
	go c.readPump(ctx)
}

// ID returns the client's connection ID
func (c *Client) ID() string {
	return c.id
}

// BoundUser returns the email the connection was authenticated as
func (c *Client) BoundUser() string {
	return c.boundUser
}

// readPump decodes frames from the connection and hands them to the
// handler one at a time
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.handler.Disconnect(ctx, c)
		c.hub.Unregister(c)
		c.closeConn()
		c.logger.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleTextMessage(ctx, message)
		case websocket.BinaryMessage:
			c.logger.Warn("Binary messages not supported")
		}
	}
}

// writePump pumps frames from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
		c.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

			// Flush queued frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.logger.Warn("Failed to write batched message", zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleTextMessage(ctx context.Context, message []byte) {
	message = bytes.TrimSpace(message)

	var in Inbound
	if err := json.Unmarshal(message, &in); err != nil || in.Event == "" {
		c.logger.Debug("Dropping malformed frame", zap.Int("size", len(message)))
		return
	}
	c.handler.Dispatch(ctx, c, in)
}

// emit queues a frame for this connection
func (c *Client) emit(event string, data any) {
	c.hub.EmitTo(c.id, Outbound{Event: event, Data: data})
}

// ack answers a frame that asked for an acknowledgment
func (c *Client) ack(ackID *int64, ack Ack) {
	if ackID == nil {
		return
	}
	c.hub.EmitTo(c.id, Outbound{Event: EventAck, AckID: ackID, Data: ack})
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
