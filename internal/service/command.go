package service

import (
	"context"
	"errors"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/queue"
	"wisefido-hub/internal/repository"
	"wisefido-hub/internal/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 指令提交路径的错误分类
var (
	ErrDuplicateCommand  = errors.New("duplicate command")
	ErrDeviceQuarantined = errors.New("device quarantined")
)

// CommandRequest 指令提交请求
type CommandRequest struct {
	DeviceID       string         `json:"device_id"`
	Capability     string         `json:"capability"`
	Params         map[string]any `json:"params"`
	Priority       string         `json:"priority"`
	DeadlineMs     int64          `json:"deadline_ms,omitempty"` // Unix 毫秒，0 表示无截止
	IdempotencyKey string         `json:"idempotency_key"`
}

// CommandService 指令提交编排
// 隔离检查 -> 幂等台账 -> 入队 -> accepted 事件
type CommandService struct {
	queue      *queue.PriorityQueue
	ledger     repository.IdempotencyLedger
	quarantine *security.Quarantine
	bus        EventPublisher

	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewCommandService(
	q *queue.PriorityQueue,
	ledger repository.IdempotencyLedger,
	quarantine *security.Quarantine,
	bus EventPublisher,
	logger *zap.Logger,
) *CommandService {
	return &CommandService{
		queue:      q,
		ledger:     ledger,
		quarantine: quarantine,
		bus:        bus,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Submit 提交指令
// 返回 ErrDuplicateCommand / ErrDeviceQuarantined / queue.ErrQueueFull 供 HTTP 层映射状态码
func (s *CommandService) Submit(ctx context.Context, req CommandRequest) (*domain.EnqueuedCommand, error) {
	// 任一隔离模式下都不接受写路径指令
	if s.quarantine.IsRestricted(req.DeviceID) {
		return nil, ErrDeviceQuarantined
	}

	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	// 幂等键首见才放行；重复提交不产生第二条队列条目
	if req.IdempotencyKey != "" {
		first, err := s.ledger.CheckAndRecord(ctx, req.DeviceID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, ErrDuplicateCommand
		}
	}

	cmd := &domain.EnqueuedCommand{
		CommandID:      s.newID(),
		DeviceID:       req.DeviceID,
		Capability:     req.Capability,
		Params:         req.Params,
		Priority:       priority,
		IdempotencyKey: req.IdempotencyKey,
		EnqueuedAt:     s.now(),
	}
	if req.DeadlineMs > 0 {
		deadline := time.UnixMilli(req.DeadlineMs)
		cmd.Deadline = &deadline
	}

	if err := s.queue.Enqueue(cmd); err != nil {
		return nil, err
	}

	s.bus.Emit(domain.CommandEvent{
		EventMeta: domain.EventMeta{
			DeviceID:   cmd.DeviceID,
			Capability: cmd.Capability,
			At:         s.now(),
		},
		Phase:     domain.PhaseAccepted,
		CommandID: cmd.CommandID,
		Priority:  cmd.Priority,
	})

	s.logger.Info("Command accepted",
		zap.String("command_id", cmd.CommandID),
		zap.String("device_id", cmd.DeviceID),
		zap.String("priority", string(cmd.Priority)),
	)
	return cmd, nil
}

// QueueDepth 当前排队总数（监控/测试用）
func (s *CommandService) QueueDepth() int {
	return s.queue.Len()
}
