package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096

	// Outbound buffer per connection. When it fills, frames for this
	// client are dropped instead of blocking the broadcaster.
	sendBuffer = 256
)

// Client is one live connection: CONNECTING until the hub registers it,
// JOINED while the pumps run, CLOSED after either pump exits. Nothing
// survives a disconnect; reconnecting joins the group fresh.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomID   int64
	group    string
	userID   uuid.UUID
	username string
	send     chan []byte
}

func NewClient(h *Hub, conn *websocket.Conn, roomID int64, roomName string, userID uuid.UUID, username string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		roomID:   roomID,
		group:    GroupName(roomName),
		userID:   userID,
		username: username,
		send:     make(chan []byte, sendBuffer),
	}
}

// Start registers the client with the hub and launches both pumps.
func (c *Client) Start(ctx context.Context) error {
	if err := c.hub.register(ctx, c); err != nil {
		return err
	}
	go c.writePump()
	go c.readPump()
	return nil
}

// readPump moves inbound frames from the socket to the hub. One per
// connection; exiting it unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read",
					zap.String("group", c.group),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		// Off the I/O path: a slow persistence round-trip must not stall
		// this connection's reads or anyone's delivery.
		go c.hub.handleInbound(c, raw)
	}
}

// writePump moves outbound frames from the send channel to the socket
// and keeps the connection alive with pings. One per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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
