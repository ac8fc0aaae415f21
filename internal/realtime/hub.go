// Package realtime fans chat events out to channel rooms.
// The wire protocol toward clients is out of scope; this package only moves
// event payloads between backend instances.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Event is one room-scoped notification.
type Event struct {
	Kind      string          `json:"kind"`
	ChannelID int64           `json:"channel_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// Event kinds published by the domain services.
const (
	EventMessagePosted   = "message.posted"
	EventMessageEdited   = "message.edited"
	EventMessageDeleted  = "message.deleted"
	EventReactionAdded   = "reaction.added"
	EventReactionRemoved = "reaction.removed"
	EventChannelUpdated  = "channel.updated"
)

// Broadcaster delivers events to everyone subscribed to a channel room.
// Implementations are fire-and-forget from the caller's perspective; delivery
// failures are logged, not propagated into request handling.
type Broadcaster interface {
	Broadcast(ctx context.Context, channelID int64, event Event) error
}

// Hub is a Redis pub/sub backed Broadcaster.
type Hub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewHub constructs a Hub.
func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	return &Hub{client: client, logger: logger}
}

// Broadcast publishes the event on the room's subject.
func (h *Hub) Broadcast(ctx context.Context, channelID int64, event Event) error {
	event.ChannelID = channelID
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("realtime: marshal event: %w", err)
	}
	if err := h.client.Publish(ctx, roomSubject(channelID), data).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Subscribe delivers events for one room until the context is cancelled.
func (h *Hub) Subscribe(ctx context.Context, channelID int64) (<-chan Event, error) {
	sub := h.client.Subscribe(ctx, roomSubject(channelID))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("realtime: subscribe: %w", err)
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					if h.logger != nil {
						h.logger.Warn("realtime decode", slog.Any("error", err))
					}
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func roomSubject(channelID int64) string {
	return fmt.Sprintf("room:%d", channelID)
}
