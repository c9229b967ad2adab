package service

import (
	"context"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/repository"

	"go.uber.org/zap"
)

// ConnectivitySweeper 设备在线状态巡检
// 超过 idleAfter 未上报的在线设备置为 offline 并发 device.disconnected；
// 重新上报时由 IngestService 经 TouchOnSeen 发回 device.connected
type ConnectivitySweeper struct {
	devices   repository.DevicesRepository
	bus       EventPublisher
	idleAfter time.Duration
	interval  time.Duration

	logger *zap.Logger
	now    func() time.Time
}

func NewConnectivitySweeper(devices repository.DevicesRepository, bus EventPublisher, idleAfter, interval time.Duration, logger *zap.Logger) *ConnectivitySweeper {
	return &ConnectivitySweeper{
		devices:   devices,
		bus:       bus,
		idleAfter: idleAfter,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run 周期巡检直到 ctx 取消
func (s *ConnectivitySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Connectivity sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep 单轮巡检，返回置为 offline 的设备数
func (s *ConnectivitySweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleAfter)
	flipped := 0

	const pageSize = 200
	for page := 1; ; page++ {
		devices, total, err := s.devices.ListDevices(ctx, page, pageSize)
		if err != nil {
			return flipped, err
		}
		for _, d := range devices {
			if d.Status != domain.DeviceStatusOnline || d.LastSeenAt.After(cutoff) {
				continue
			}
			if err := s.devices.SetStatus(ctx, d.DeviceID, domain.DeviceStatusOffline); err != nil {
				s.logger.Error("Failed to mark device offline",
					zap.String("device_id", d.DeviceID),
					zap.Error(err),
				)
				continue
			}
			flipped++
			s.bus.Emit(domain.ConnectivityEvent{
				EventMeta: domain.EventMeta{DeviceID: d.DeviceID, At: s.now()},
				Online:    false,
			})
		}
		if page*pageSize >= total {
			return flipped, nil
		}
	}
}
