package queue

import (
	"context"
	"fmt"
	"time"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// Transport 指令投递通道（MQTT 下发 / HTTP 推送 / 本地模拟）
// 实现方负责有界超时；投递失败以 error 返回，worker 只发 command.failed，不重试
type Transport interface {
	Deliver(ctx context.Context, cmd *domain.EnqueuedCommand) error
}

// Publisher 事件发布端（由事件总线实现）
type Publisher interface {
	Emit(event domain.Event)
}

// Worker 投递 worker
// 单 worker 内同一时刻只有一条指令在途；多 worker 并行时（RunN n>1）
// 全局优先级顺序退化为 per-worker 顺序
type Worker struct {
	queue     *PriorityQueue
	transport Transport
	bus       Publisher
	logger    *zap.Logger

	pollInterval    time.Duration
	deliveryTimeout time.Duration
	now             func() time.Time
}

func NewWorker(q *PriorityQueue, transport Transport, bus Publisher, pollInterval, deliveryTimeout time.Duration, logger *zap.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = 5 * time.Second
	}
	return &Worker{
		queue:           q,
		transport:       transport,
		bus:             bus,
		logger:          logger,
		pollInterval:    pollInterval,
		deliveryTimeout: deliveryTimeout,
		now:             time.Now,
	}
}

// Run 持续投递循环：出队一条、处理一条；队列空则小睡后重试
// 投递失败记日志并继续，不中断循环
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Delivery worker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("delivery_timeout", w.deliveryTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Delivery worker stopped")
			return nil
		default:
		}

		cmd := w.queue.Dequeue()
		if cmd == nil {
			select {
			case <-ctx.Done():
				w.logger.Info("Delivery worker stopped")
				return nil
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.process(ctx, cmd)
	}
}

// RunN 启动 n 个并行 worker 共享同一队列
// 注意：n > 1 时出队相互竞争，全局优先级顺序不再保证
func (w *Worker) RunN(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		go func() {
			_ = w.Run(ctx)
		}()
	}
}

func (w *Worker) process(ctx context.Context, cmd *domain.EnqueuedCommand) {
	meta := domain.EventMeta{
		DeviceID:   cmd.DeviceID,
		Capability: cmd.Capability,
		At:         w.now(),
	}

	// 出队时已过截止时间：不投递、不重试，终态 expired
	if cmd.Deadline != nil && w.now().After(*cmd.Deadline) {
		w.logger.Warn("Command expired before delivery",
			zap.String("command_id", cmd.CommandID),
			zap.String("device_id", cmd.DeviceID),
			zap.Time("deadline", *cmd.Deadline),
		)
		w.bus.Emit(domain.CommandEvent{
			EventMeta: meta,
			Phase:     domain.PhaseExpired,
			CommandID: cmd.CommandID,
			Priority:  cmd.Priority,
			Reason:    "deadline passed at dequeue",
		})
		return
	}

	w.bus.Emit(domain.CommandEvent{
		EventMeta: meta,
		Phase:     domain.PhaseDelivering,
		CommandID: cmd.CommandID,
		Priority:  cmd.Priority,
	})

	deliverCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	err := w.transport.Deliver(deliverCtx, cmd)
	cancel()

	meta.At = w.now()
	if err != nil {
		w.logger.Error("Command delivery failed",
			zap.String("command_id", cmd.CommandID),
			zap.String("device_id", cmd.DeviceID),
			zap.Error(err),
		)
		w.bus.Emit(domain.CommandEvent{
			EventMeta: meta,
			Phase:     domain.PhaseFailed,
			CommandID: cmd.CommandID,
			Priority:  cmd.Priority,
			Reason:    fmt.Sprintf("delivery failed: %v", err),
		})
		return
	}

	w.bus.Emit(domain.CommandEvent{
		EventMeta: meta,
		Phase:     domain.PhaseApplied,
		CommandID: cmd.CommandID,
		Priority:  cmd.Priority,
	})
}
