package security

import (
	"sync"
	"time"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// EventPublisher 事件发布端
type EventPublisher interface {
	Emit(event domain.Event)
}

// Quarantine 设备隔离服务
// 纯状态表：无记录即未隔离。检测信号不会自动触发隔离，
// 升级策略留给编排方（见 cmd/wisefido-hub）
type Quarantine struct {
	mu     sync.RWMutex
	states map[string]domain.QuarantineState

	bus    EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewQuarantine(bus EventPublisher, logger *zap.Logger) *Quarantine {
	return &Quarantine{
		states: map[string]domain.QuarantineState{},
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Apply 记录隔离并发布 quarantine.applied（重复 Apply 覆盖模式）
func (q *Quarantine) Apply(deviceID string, mode domain.QuarantineMode) {
	now := q.now()
	q.mu.Lock()
	q.states[deviceID] = domain.QuarantineState{
		DeviceID:  deviceID,
		Mode:      mode,
		AppliedAt: now,
	}
	q.mu.Unlock()

	q.logger.Warn("Quarantine applied",
		zap.String("device_id", deviceID),
		zap.String("mode", string(mode)),
	)
	q.bus.Emit(domain.QuarantineEvent{
		EventMeta: domain.EventMeta{DeviceID: deviceID, At: now},
		Mode:      mode,
	})
}

// Release 解除隔离（不存在时为 no-op，但仍发布 quarantine.released）
func (q *Quarantine) Release(deviceID string) {
	q.mu.Lock()
	delete(q.states, deviceID)
	q.mu.Unlock()

	q.logger.Info("Quarantine released", zap.String("device_id", deviceID))
	q.bus.Emit(domain.QuarantineEvent{
		EventMeta: domain.EventMeta{DeviceID: deviceID, At: q.now()},
		Released:  true,
	})
}

// IsBlocked 仅 mode=block 返回 true（read_only 不拦上报，只拦写入/指令，由调用方区分）
func (q *Quarantine) IsBlocked(deviceID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s, ok := q.states[deviceID]
	return ok && s.Mode == domain.QuarantineBlock
}

// IsRestricted 是否处于任一隔离模式（写入/指令路径用）
func (q *Quarantine) IsRestricted(deviceID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.states[deviceID]
	return ok
}

// Get 查询隔离状态
func (q *Quarantine) Get(deviceID string) (domain.QuarantineState, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s, ok := q.states[deviceID]
	return s, ok
}
