package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Event 表示系统中的一个事件
type Event struct {
	Type      string                 // 事件类型
	Source    string                 // 事件来源
	Data      interface{}            // 事件数据
	Metadata  map[string]interface{} // 元数据
	Timestamp time.Time              // 时间戳
}

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event) error

var metricDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pocket_events_dropped_total",
	Help: "Events dropped because the bus queue was full or closed",
}, []string{"type"})

func init() {
	prometheus.MustRegister(metricDropped)
}

// Bus 事件总线，服务层只负责发布，推送由订阅者完成
// 异步事件由单个协程按发布顺序处理
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex

	eventChan chan Event
	closed    bool
	closeMu   sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewBus 创建事件总线并启动处理协程
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	bus := &Bus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan Event, bufferSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe 订阅事件类型
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("EventBus: Subscribed to event type", zap.String("type", eventType))
}

// SubscribeMany 同一个处理器订阅多个事件类型
func (b *Bus) SubscribeMany(eventTypes []string, handler Handler) {
	for _, typ := range eventTypes {
		b.Subscribe(typ, handler)
	}
}

// Publish 异步发布，队列已满或总线已关闭时丢弃
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		metricDropped.WithLabelValues(event.Type).Inc()
		b.logger.Warn("EventBus: bus closed, dropping event", zap.String("type", event.Type))
		return
	}

	select {
	case b.eventChan <- event:
	default:
		metricDropped.WithLabelValues(event.Type).Inc()
		b.logger.Warn("EventBus: event channel full, dropping event", zap.String("type", event.Type))
	}
}

// PublishSync 同步发布，返回所有处理器的错误
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return b.dispatch(ctx, event)
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.dispatchLogged(b.ctx, event)
		case <-b.ctx.Done():
			// 关闭前处理完已入队的事件
			for {
				select {
				case event := <-b.eventChan:
					b.dispatchLogged(context.Background(), event)
				default:
					b.logger.Info("EventBus: Shutting down event processor")
					return
				}
			}
		}
	}
}

func (b *Bus) dispatchLogged(ctx context.Context, event Event) {
	if err := b.dispatch(ctx, event); err != nil {
		b.logger.Warn("EventBus: Handler error", zap.String("type", event.Type), zap.Error(err))
	}
}

// dispatch 并发执行同一事件的所有处理器，等待全部完成
func (b *Bus) dispatch(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = h(ctx, event)
		}(i, handler)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Shutdown 停止接收新事件，处理完队列后返回
func (b *Bus) Shutdown() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	b.closeMu.Unlock()

	b.logger.Info("EventBus: Shutting down...")
	b.cancel()
	b.wg.Wait()
	b.logger.Info("EventBus: Shutdown complete")
}

// GetSubscriberCount 获取某个事件类型的订阅者数量
func (b *Bus) GetSubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
