package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/infra"
	"pockettrade.com/internal/model"
)

type recordingConn struct {
	mu     sync.Mutex
	writes []interface{}
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v)
	return nil
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) snapshot() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.writes...)
}

func TestEngineForwardsPocketEventsToOwner(t *testing.T) {
	bus := event.NewBus(16, nil)
	defer bus.Shutdown()
	hub := infra.NewWsManager(nil)

	e := NewEngine(nil, bus, hub, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	alice, bob := &recordingConn{}, &recordingConn{}
	hub.Register <- infra.UserConnection{UserID: "alice", Conn: alice}
	hub.Register <- infra.UserConnection{UserID: "bob", Conn: bob}
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 5*time.Millisecond)

	p := &model.Pocket{ID: "p1", OwnerID: "alice", Status: model.PocketStatusActive}
	bus.Publish(event.NewPocketEvent("test", event.PocketEvent{
		Type:     constants.EventPocketSwapped,
		PocketID: p.ID,
		Owner:    p.OwnerID,
		Status:   p.Status,
		Pocket:   p,
	}))

	require.Eventually(t, func() bool { return len(alice.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	got, ok := alice.snapshot()[0].(event.PocketEvent)
	require.True(t, ok)
	assert.Equal(t, constants.EventPocketSwapped, got.Type)
	assert.Empty(t, bob.snapshot())

	bus.Publish(event.Event{Type: constants.EventRegistryUpdated, Data: &model.Registry{ID: model.RegistryID}})
	require.Eventually(t, func() bool {
		return len(alice.snapshot()) == 2 && len(bob.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}
