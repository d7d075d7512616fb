package infra

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"pockettrade.com/internal/domain"
)

// JSONConn WebSocket 连接需要的最小能力 (*websocket.Conn 满足)
type JSONConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// WsManager manages WebSocket connections keyed by user.
type WsManager struct {
	// User connection mapping: UserID -> Set of Connections
	// {
	//     "alice": {0xc0000a0100: true, 0xc0000a0280: true}, // 同一用户可以多端登录
	//     "bob":   {0xc0000a0400: true},
	// }
	userConns map[string]map[JSONConn]bool

	// sendChannels stores a buffered channel for each client.
	// This helps avoid blocking the event loop if one client is slow.
	sendChannels map[JSONConn]chan interface{}

	// Mutex to protect maps
	mu sync.RWMutex

	// Channels for actions
	Register   chan UserConnection
	Unregister chan UserConnection

	logger *zap.Logger
}

type UserConnection struct {
	UserID string
	Conn   JSONConn
}

var _ domain.Notifier = (*WsManager)(nil)

func NewWsManager(logger *zap.Logger) *WsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WsManager{
		userConns:    make(map[string]map[JSONConn]bool),
		sendChannels: make(map[JSONConn]chan interface{}),
		Register:     make(chan UserConnection),
		Unregister:   make(chan UserConnection),
		logger:       logger,
	}
}

func (manager *WsManager) Start(ctx context.Context) {
	manager.logger.Info("Starting WebSocket Manager...")
	for {
		select {
		case req := <-manager.Register:
			manager.register(req)
		case req := <-manager.Unregister:
			manager.unregister(req)
		case <-ctx.Done():
			manager.closeAll()
			manager.logger.Info("WebSocket Manager stopped")
			return
		}
	}
}

func (manager *WsManager) register(req UserConnection) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	// Create a buffered channel for this connection
	sendCh := make(chan interface{}, 256)
	manager.sendChannels[req.Conn] = sendCh

	// Start a dedicated writer goroutine for this connection
	go func(conn JSONConn, ch chan interface{}) {
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				// On error, let the connection close and unregister handle it
				manager.logger.Warn("WS WriteLoop error", zap.Error(err))
				conn.Close()
				return
			}
		}
	}(req.Conn, sendCh)

	if manager.userConns[req.UserID] == nil {
		manager.userConns[req.UserID] = make(map[JSONConn]bool)
	}
	manager.userConns[req.UserID][req.Conn] = true

	manager.logger.Info("New WebSocket client connected", zap.String("user_id", req.UserID))
}

func (manager *WsManager) unregister(req UserConnection) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	ch, ok := manager.sendChannels[req.Conn]
	if !ok {
		return
	}
	close(ch)
	delete(manager.sendChannels, req.Conn)

	if conns := manager.userConns[req.UserID]; conns != nil {
		delete(conns, req.Conn)
		if len(conns) == 0 {
			delete(manager.userConns, req.UserID)
		}
	}
	manager.logger.Info("WebSocket client disconnected", zap.String("user_id", req.UserID))
}

func (manager *WsManager) closeAll() {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	for conn, ch := range manager.sendChannels {
		close(ch)
		delete(manager.sendChannels, conn)
	}
	manager.userConns = make(map[string]map[JSONConn]bool)
}

// PushToUser sends a message to all active connections of a specific user.
func (manager *WsManager) PushToUser(userID string, msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for conn := range manager.userConns[userID] {
		if ch, exists := manager.sendChannels[conn]; exists {
			select {
			case ch <- msg:
			default:
				// Skip if buffer is full
			}
		}
	}
}

// BroadcastToAll sends a message to every connected client.
func (manager *WsManager) BroadcastToAll(msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for _, ch := range manager.sendChannels {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ConnectionCount 当前连接数
func (manager *WsManager) ConnectionCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.sendChannels)
}
