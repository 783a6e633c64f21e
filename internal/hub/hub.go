// Package hub manages live WebSocket sessions grouped by room and fans
// chat messages out to every member of a room's broadcast group.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pwasik/parley/internal/repository"
	"go.uber.org/zap"
)

// GroupName is the broadcast group key for a room. The prefix keeps
// chat traffic apart from anything else sharing the channel layer.
func GroupName(roomName string) string {
	return "chat_" + roomName
}

// Frame is the wire format in both directions: the client sends
// {"message","username"} and every group member receives the same shape
// back, sender included.
type Frame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// persistTimeout bounds the detached storage write for an accepted
// message. Detached, because a disconnect must not cancel the insert of
// a message the hub already took responsibility for.
const persistTimeout = 10 * time.Second

// Hub tracks which clients are in which broadcast group and routes
// inbound frames: persist first, then publish to the group's channel so
// the message log stays a safe replay source even when a delivery races
// a disconnect.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]bool

	layer    ChannelLayer
	messages repository.MessageRepository
	logger   *zap.Logger
}

func New(layer ChannelLayer, messages repository.MessageRepository, logger *zap.Logger) *Hub {
	return &Hub{
		groups:   make(map[string]map[*Client]bool),
		layer:    layer,
		messages: messages,
		logger:   logger,
	}
}

// Run pumps the channel layer into local delivery. Blocks until ctx is
// cancelled; start it in its own goroutine before accepting connections.
func (h *Hub) Run(ctx context.Context) error {
	return h.layer.Run(ctx, h.deliverLocal)
}

// register joins a client to its group, subscribing the group on the
// channel layer when this is its first local member.
func (h *Hub) register(ctx context.Context, c *Client) error {
	h.mu.Lock()
	clients, ok := h.groups[c.group]
	if !ok {
		clients = make(map[*Client]bool)
		h.groups[c.group] = clients
	}
	first := len(clients) == 0
	clients[c] = true
	h.mu.Unlock()

	if first {
		if err := h.layer.Subscribe(ctx, c.group); err != nil {
			h.unregister(c)
			return fmt.Errorf("join group %s: %w", c.group, err)
		}
	}

	h.logger.Info("client joined group",
		zap.String("group", c.group),
		zap.String("username", c.username),
	)
	return nil
}

// unregister removes a client, closes its send channel so the write
// pump exits, and drops the layer subscription once the group is empty.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.groups[c.group]
	if ok && clients[c] {
		delete(clients, c)
		close(c.send)
	}
	empty := ok && len(clients) == 0
	if empty {
		delete(h.groups, c.group)
	}
	h.mu.Unlock()

	if empty {
		if err := h.layer.Unsubscribe(context.Background(), c.group); err != nil {
			h.logger.Warn("leave group", zap.String("group", c.group), zap.Error(err))
		}
	}

	h.logger.Info("client left group",
		zap.String("group", c.group),
		zap.String("username", c.username),
	)
}

// handleInbound runs for each received frame, off the read pump's
// goroutine so a slow insert never stalls the connection's reads. Order:
// persist, then publish. A frame that fails to persist is not broadcast.
func (h *Hub) handleInbound(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.logger.Warn("dropping malformed frame",
			zap.String("group", c.group),
			zap.Error(err),
		)
		return
	}

	// Deliberately not the connection's context: once a frame is read,
	// its persistence must survive the sender disconnecting.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	authorID := c.userID
	if _, err := h.messages.Create(ctx, c.roomID, &authorID, frame.Message); err != nil {
		h.logger.Error("persist message",
			zap.String("group", c.group),
			zap.Error(err),
		)
		return
	}

	payload, err := json.Marshal(Frame{Message: frame.Message, Username: frame.Username})
	if err != nil {
		h.logger.Error("marshal frame", zap.Error(err))
		return
	}
	if err := h.layer.Publish(ctx, c.group, payload); err != nil {
		h.logger.Error("broadcast message",
			zap.String("group", c.group),
			zap.Error(err),
		)
	}
}

// deliverLocal fans a payload out to every local member of the group,
// sender included. Per-client sends are non-blocking: a consumer whose
// buffer is full loses this frame rather than delaying everyone else;
// the group is an address space, not a queue with backpressure.
func (h *Hub) deliverLocal(group string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.groups[group] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("send buffer full, dropping frame",
				zap.String("group", group),
				zap.String("username", c.username),
			)
		}
	}
}

// GroupSize reports the number of live local connections in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
