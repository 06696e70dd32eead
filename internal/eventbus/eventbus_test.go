package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"chronofauna/internal/eventbus"
)

func newTestBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return eventbus.NewBus(client, "test-run")
}

func TestBus_PushAndDrainPreservesFIFOOrder(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Push(ctx, eventbus.Event{Type: "progress", Message: string(rune('a' + i))}))
	}

	events, err := bus.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "a", events[0].Message)
	require.Equal(t, "b", events[1].Message)
	require.Equal(t, "c", events[2].Message)
}

func TestBus_DrainEmptyReturnsNoEvents(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	events, err := bus.Drain(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestBus_ClearRemovesPendingEvents(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	require.NoError(t, bus.Push(ctx, eventbus.Event{Type: "progress", Message: "x"}))
	require.NoError(t, bus.Clear(ctx))

	events, err := bus.Drain(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestBus_StreamEmitsPushedEventsAndStopsOnCancel(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, bus.Push(context.Background(), eventbus.Event{Type: "progress", Message: "hello"}))

	var received []eventbus.Event
	err := bus.Stream(ctx, func(evt eventbus.Event) error {
		received = append(received, evt)
		return nil
	}, func() error { return nil })

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, received, 1)
	require.Equal(t, "hello", received[0].Message)
}

func TestBus_PushErrorSetsCategory(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t)

	require.NoError(t, bus.PushError(ctx, "store unavailable", "store_corrupted"))

	events, err := bus.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "error", events[0].Type)
	require.Equal(t, "store_corrupted", events[0].Category)
}

func TestBus_LocalFallbackWhenRedisNil(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewBus(nil, "local-run")

	require.NoError(t, bus.Push(ctx, eventbus.Event{Type: "progress", Message: "local"}))
	events, err := bus.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "local", events[0].Message)
}
