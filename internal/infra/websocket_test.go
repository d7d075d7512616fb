package infra

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	writes []interface{}
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func TestWsManagerPushToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewWsManager(nil)
	go m.Start(ctx)

	alice, bob := &fakeConn{}, &fakeConn{}
	m.Register <- UserConnection{UserID: "alice", Conn: alice}
	m.Register <- UserConnection{UserID: "bob", Conn: bob}
	require.Eventually(t, func() bool { return m.ConnectionCount() == 2 }, time.Second, 5*time.Millisecond)

	m.PushToUser("alice", map[string]string{"type": "pocket.swapped"})
	require.Eventually(t, func() bool { return alice.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, bob.count())

	m.BroadcastToAll("hello")
	require.Eventually(t, func() bool { return alice.count() == 2 && bob.count() == 1 }, time.Second, 5*time.Millisecond)

	m.Unregister <- UserConnection{UserID: "bob", Conn: bob}
	require.Eventually(t, func() bool { return m.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	// 未注册的用户直接忽略
	m.PushToUser("carol", "x")
}

func TestPocketEventDispatcherPushesToOwner(t *testing.T) {
	n := &recordingNotifier{}
	d := NewPocketEventDispatcher(n, 4, zapNop())
	done := make(chan struct{})
	go func() {
		d.Start()
		close(done)
	}()

	d.Messages() <- PocketMessage{Owner: "alice", Payload: json.RawMessage(`{"a":1}`)}
	d.Messages() <- PocketMessage{Owner: "bob"} // 空 payload 丢弃
	d.Stop()
	<-done

	require.Len(t, n.pushed, 1)
	assert.Equal(t, "alice", n.pushed[0])
}

func TestPublishPocketEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPublish("pocket.alice", []byte(`{"id":"p1"}`)).SetVal(1)

	err := PublishPocketEvent(context.Background(), db, "alice", map[string]string{"id": "p1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
