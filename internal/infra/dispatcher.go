package infra

import (
	"go.uber.org/zap"
	"pockettrade.com/internal/domain"
)

// PocketEventDispatcher 把 Redis 收到的 Pocket 事件推送给对应 owner 的 WebSocket 连接
type PocketEventDispatcher struct {
	notifier domain.Notifier
	messages chan PocketMessage
	logger   *zap.Logger
}

func NewPocketEventDispatcher(notifier domain.Notifier, bufferSize int, logger *zap.Logger) *PocketEventDispatcher {
	return &PocketEventDispatcher{
		notifier: notifier,
		messages: make(chan PocketMessage, bufferSize),
		logger:   logger,
	}
}

// Messages 订阅方写入的通道
func (d *PocketEventDispatcher) Messages() chan<- PocketMessage {
	return d.messages
}

// Start begins dispatching messages until Stop is called.
// It should be run in a separate goroutine.
func (d *PocketEventDispatcher) Start() {
	d.logger.Info("PocketEventDispatcher: Started listening for pocket events...")
	for msg := range d.messages {
		d.safePush(msg)
	}
	d.logger.Info("PocketEventDispatcher: channel closed, stopping.")
}

func (d *PocketEventDispatcher) Stop() {
	close(d.messages)
}

func (d *PocketEventDispatcher) safePush(msg PocketMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("PocketEventDispatcher: Panic in PushToUser", zap.Any("panic", r))
		}
	}()
	if len(msg.Payload) == 0 {
		return
	}
	d.notifier.PushToUser(msg.Owner, msg.Payload)
}
