package engine

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"pockettrade.com/internal/constants"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/event"
	"pockettrade.com/internal/infra"
)

// pocketEventTypes 需要推送给 owner 的事件
var pocketEventTypes = []string{
	constants.EventPocketCreated,
	constants.EventPocketUpdated,
	constants.EventPocketDeposited,
	constants.EventPocketWithdrawn,
	constants.EventPocketSwapped,
	constants.EventPocketStopTriggered,
}

// Engine 是一个轻量级协调器，负责：
// 1. 启动 WebSocket 管理器与 Redis 事件订阅
// 2. 把事件总线上的 Pocket 事件推送给 owner
//
// rdb 为 nil 时单实例运行，事件直接推送到本机连接；
// 否则先发布到 Redis，再由各实例的订阅器推送。
type Engine struct {
	rdb          *redis.Client
	bus          *event.Bus
	websocketHub *infra.WsManager
	dispatcher   *infra.PocketEventDispatcher
	logger       *zap.Logger

	subscriberDone <-chan struct{}

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine 创建引擎
func NewEngine(rdb *redis.Client, bus *event.Bus, websocketHub *infra.WsManager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		rdb:          rdb,
		bus:          bus,
		websocketHub: websocketHub,
		dispatcher:   infra.NewPocketEventDispatcher(websocketHub, 256, logger),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 启动引擎后台进程
func (e *Engine) Start() error {
	e.logger.Info("Engine: Starting...")

	// 1. 启动 WebSocket 管理器
	go e.websocketHub.Start(e.ctx)

	// 2. 启动 Redis 事件订阅
	if e.rdb != nil {
		done, err := infra.StartPocketEventSubscriber(e.ctx, e.rdb, e.dispatcher.Messages(), e.logger)
		if err != nil {
			return err
		}
		e.subscriberDone = done
		go e.dispatcher.Start()
	}

	// 3. 注册事件处理
	e.bus.SubscribeMany(pocketEventTypes, e.onPocketEvent)
	e.bus.Subscribe(constants.EventRegistryUpdated, e.onRegistryUpdated)

	e.logger.Info("Engine: Started successfully")
	return nil
}

func (e *Engine) onPocketEvent(ctx context.Context, ev event.Event) error {
	data, ok := ev.Data.(event.PocketEvent)
	if !ok || data.Owner == "" {
		return nil
	}
	if e.rdb == nil {
		e.websocketHub.PushToUser(data.Owner, data)
		return nil
	}
	return infra.PublishPocketEvent(ctx, e.rdb, data.Owner, data)
}

func (e *Engine) onRegistryUpdated(_ context.Context, ev event.Event) error {
	e.websocketHub.BroadcastToAll(map[string]interface{}{
		"type":     ev.Type,
		"registry": ev.Data,
	})
	return nil
}

// Stop 停止引擎
func (e *Engine) Stop() {
	e.logger.Info("Engine: Stopping...")
	e.cancel()
	if e.subscriberDone != nil {
		<-e.subscriberDone
		e.dispatcher.Stop()
	}
}

// GetNotifier 返回 WebSocket 通知器 (实现 domain.Notifier 接口)
func (e *Engine) GetNotifier() domain.Notifier {
	return e.websocketHub
}

// GetWebSocketHub 返回 WebSocket 管理器
func (e *Engine) GetWebSocketHub() *infra.WsManager {
	return e.websocketHub
}
