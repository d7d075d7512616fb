package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBusPublishSyncCallsAllHandlers(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Shutdown()

	var calls int32
	bus.Subscribe("pocket.created", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	bus.Subscribe("pocket.created", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return errBoom
	})

	err := bus.PublishSync(context.Background(), Event{Type: "pocket.created"})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, bus.GetSubscriberCount("pocket.created"))
	assert.Equal(t, 0, bus.GetSubscriberCount("pocket.updated"))
}

func TestBusPublishAsync(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Shutdown()

	got := make(chan Event, 1)
	bus.Subscribe("pocket.swapped", func(_ context.Context, e Event) error {
		got <- e
		return nil
	})

	bus.Publish(NewPocketEvent("test", PocketEvent{Type: "pocket.swapped", PocketID: "p1", Owner: "alice"}))

	select {
	case e := <-got:
		data, ok := e.Data.(PocketEvent)
		require.True(t, ok)
		assert.Equal(t, "p1", data.PocketID)
		assert.Equal(t, "alice", e.Metadata["owner"])
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusShutdownDrainsQueue(t *testing.T) {
	bus := NewBus(8, nil)

	var calls int32
	bus.Subscribe("x", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	for i := 0; i < 3; i++ {
		bus.Publish(Event{Type: "x"})
	}
	bus.Shutdown()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestBusSubscribeMany(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Shutdown()

	var calls int32
	bus.SubscribeMany([]string{"a", "b"}, func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, bus.PublishSync(context.Background(), Event{Type: "a"}))
	require.NoError(t, bus.PublishSync(context.Background(), Event{Type: "b"}))
	require.NoError(t, bus.PublishSync(context.Background(), Event{Type: "c"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBusPublishAfterShutdownIsDropped(t *testing.T) {
	bus := NewBus(8, nil)

	var calls int32
	bus.Subscribe("x", func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	bus.Shutdown()
	bus.Shutdown()

	bus.Publish(Event{Type: "x"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
