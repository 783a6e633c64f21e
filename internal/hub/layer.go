package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelLayer is the fan-out address space behind the hub. Publishing
// to a group reaches every subscriber of that group; on this process
// via MemoryLayer, or on every process sharing a Redis instance via
// RedisLayer. The hub subscribes a group while it has live local
// members and hands delivered payloads to its local connections.
type ChannelLayer interface {
	Publish(ctx context.Context, group string, payload []byte) error
	Subscribe(ctx context.Context, group string) error
	Unsubscribe(ctx context.Context, group string) error

	// Run delivers published payloads to handler until ctx is done.
	Run(ctx context.Context, handler func(group string, payload []byte)) error
}

// MemoryLayer is a process-local channel layer for single-node runs and
// tests. Publish hands the payload straight to the running handler.
type MemoryLayer struct {
	mu      sync.RWMutex
	groups  map[string]bool
	handler func(group string, payload []byte)
}

func NewMemoryLayer() *MemoryLayer {
	return &MemoryLayer{groups: make(map[string]bool)}
}

func (l *MemoryLayer) Publish(ctx context.Context, group string, payload []byte) error {
	l.mu.RLock()
	subscribed := l.groups[group]
	handler := l.handler
	l.mu.RUnlock()

	if subscribed && handler != nil {
		handler(group, payload)
	}
	return nil
}

func (l *MemoryLayer) Subscribe(ctx context.Context, group string) error {
	l.mu.Lock()
	l.groups[group] = true
	l.mu.Unlock()
	return nil
}

func (l *MemoryLayer) Unsubscribe(ctx context.Context, group string) error {
	l.mu.Lock()
	delete(l.groups, group)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLayer) Run(ctx context.Context, handler func(group string, payload []byte)) error {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// RedisLayer fans out through Redis pub/sub, one Redis channel per
// group. Any number of server processes pointed at the same Redis see
// each other's broadcasts, which is what lets two members of the same
// room chat while connected to different instances.
type RedisLayer struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *zap.Logger
}

func NewRedisLayer(client *redis.Client, logger *zap.Logger) *RedisLayer {
	return &RedisLayer{
		client: client,
		// Subscribe with no channels: a live PubSub we add and remove
		// groups on as rooms gain and lose local members.
		pubsub: client.Subscribe(context.Background()),
		logger: logger,
	}
}

func (l *RedisLayer) Publish(ctx context.Context, group string, payload []byte) error {
	if err := l.client.Publish(ctx, group, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", group, err)
	}
	return nil
}

func (l *RedisLayer) Subscribe(ctx context.Context, group string) error {
	if err := l.pubsub.Subscribe(ctx, group); err != nil {
		return fmt.Errorf("subscribe %s: %w", group, err)
	}
	return nil
}

func (l *RedisLayer) Unsubscribe(ctx context.Context, group string) error {
	if err := l.pubsub.Unsubscribe(ctx, group); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", group, err)
	}
	return nil
}

func (l *RedisLayer) Run(ctx context.Context, handler func(group string, payload []byte)) error {
	ch := l.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if err := l.pubsub.Close(); err != nil {
				l.logger.Warn("closing pubsub", zap.Error(err))
			}
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
