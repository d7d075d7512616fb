package infra

import (
	"sync"

	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu     sync.Mutex
	pushed []string
}

func (n *recordingNotifier) PushToUser(userID string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, userID)
}

func (n *recordingNotifier) BroadcastToAll(interface{}) {}

func zapNop() *zap.Logger { return zap.NewNop() }
