package bus

import (
	"context"
	"sync"

	"wisefido-hub/internal/domain"
	redisutil "wisefido-hub/internal/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Handler 事件处理函数
type Handler func(event domain.Event)

// Bus 进程内类型化发布/订阅
// 按 EventType 注册处理器；Emit 同步分发，单个处理器 panic 不影响其余订阅者。
// 可选地把所有事件镜像写入 Redis Streams，供进程外消费者（数据转换、可视化）订阅
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
	all      []Handler

	mirror       *redis.Client
	mirrorStream string
	logger       *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: map[domain.EventType][]Handler{},
		logger:   logger,
	}
}

// WithMirror 开启 Redis Streams 镜像（stream 如 "hub:events"）
func (b *Bus) WithMirror(client *redis.Client, stream string) *Bus {
	b.mirror = client
	b.mirrorStream = stream
	return b
}

// On 订阅某一事件类型
func (b *Bus) On(kind domain.EventType, h Handler) {
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// OnAll 订阅全部事件（fanout 网关用）
func (b *Bus) OnAll(h Handler) {
	b.mu.Lock()
	b.all = append(b.all, h)
	b.mu.Unlock()
}

// Emit 同步分发事件
func (b *Bus) Emit(event domain.Event) {
	b.mu.RLock()
	typed := append([]Handler(nil), b.handlers[event.Kind()]...)
	all := append([]Handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range typed {
		b.dispatch(h, event)
	}
	for _, h := range all {
		b.dispatch(h, event)
	}

	if b.mirror != nil {
		b.mirrorOut(event)
	}
}

// dispatch 单个处理器失败不影响其余订阅者
func (b *Bus) dispatch(h Handler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panic",
				zap.String("event_type", string(event.Kind())),
				zap.Any("panic", r),
			)
		}
	}()
	h(event)
}

func (b *Bus) mirrorOut(event domain.Event) {
	_, err := redisutil.PublishJSONToStream(context.Background(), b.mirror, b.mirrorStream, map[string]any{
		"type":  string(event.Kind()),
		"event": event,
	})
	if err != nil {
		b.logger.Error("Failed to mirror event to stream",
			zap.String("event_type", string(event.Kind())),
			zap.Error(err),
		)
	}
}
