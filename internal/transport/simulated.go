package transport

import (
	"context"
	"time"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// SimulatedTransport 本地开发用的模拟投递
// 固定延迟后视为送达；ctx 提前取消返回其错误
type SimulatedTransport struct {
	latency time.Duration
	logger  *zap.Logger
}

func NewSimulatedTransport(latency time.Duration, logger *zap.Logger) *SimulatedTransport {
	return &SimulatedTransport{latency: latency, logger: logger}
}

func (t *SimulatedTransport) Deliver(ctx context.Context, cmd *domain.EnqueuedCommand) error {
	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.logger.Info("Simulated command delivery",
		zap.String("command_id", cmd.CommandID),
		zap.String("device_id", cmd.DeviceID),
		zap.String("capability", cmd.Capability),
	)
	return nil
}
