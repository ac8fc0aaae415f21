package realtime

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHub(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]any{"message_id": 7})
	require.NoError(t, hub.Broadcast(ctx, 1, Event{Kind: EventMessagePosted, Payload: payload}))

	select {
	case event := <-events:
		require.Equal(t, EventMessagePosted, event.Kind)
		require.Equal(t, int64(1), event.ChannelID)
		require.JSONEq(t, `{"message_id":7}`, string(event.Payload))
		require.False(t, event.At.IsZero())
	case <-ctx.Done():
		t.Fatal("no event delivered before timeout")
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room1, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)
	room2, err := hub.Subscribe(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, hub.Broadcast(ctx, 2, Event{Kind: EventChannelUpdated}))

	select {
	case event := <-room2:
		require.Equal(t, int64(2), event.ChannelID)
	case <-ctx.Done():
		t.Fatal("no event delivered before timeout")
	}

	select {
	case event := <-room1:
		t.Fatalf("room 1 received an event for room 2: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubSubscribeStopsOnCancel(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-events:
		require.False(t, open, "channel should close after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}
