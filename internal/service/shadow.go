package service

import (
	"context"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/repository"
	"wisefido-hub/internal/security"

	"go.uber.org/zap"
)

// ShadowService 设备影子编排
// 存储层做版本门控写入并报告是否生效；生效时本层发 shadow.updated
type ShadowService struct {
	store      repository.ShadowStore
	quarantine *security.Quarantine
	bus        EventPublisher

	logger *zap.Logger
	now    func() time.Time
}

func NewShadowService(
	store repository.ShadowStore,
	quarantine *security.Quarantine,
	bus EventPublisher,
	logger *zap.Logger,
) *ShadowService {
	return &ShadowService{
		store:      store,
		quarantine: quarantine,
		bus:        bus,
		logger:     logger,
		now:        time.Now,
	}
}

// Get 读取影子；从未写入的设备返回 version=0 的空文档而非错误
func (s *ShadowService) Get(ctx context.Context, deviceID string) (*domain.ShadowEntry, error) {
	entry, err := s.store.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return domain.ZeroShadow(deviceID), nil
	}
	return entry, nil
}

// ApplyUpdate 版本门控更新
// 返回 (当前文档, 是否生效)；陈旧版本不报错，applied=false 且文档为当前值
func (s *ShadowService) ApplyUpdate(ctx context.Context, deviceID string, version int64, patch map[string]any) (*domain.ShadowEntry, bool, error) {
	// 影子写入属写路径：read_only 与 block 都拦截
	if s.quarantine.IsRestricted(deviceID) {
		return nil, false, ErrDeviceQuarantined
	}

	entry, applied, err := s.store.ApplyUpdate(ctx, deviceID, version, patch)
	if err != nil {
		return nil, false, err
	}

	if applied {
		s.bus.Emit(domain.ShadowEvent{
			EventMeta: domain.EventMeta{DeviceID: deviceID, At: s.now()},
			Version:   entry.Version,
			Reported:  entry.Reported,
		})
	} else {
		s.logger.Debug("Stale shadow update ignored",
			zap.String("device_id", deviceID),
			zap.Int64("incoming_version", version),
			zap.Int64("current_version", entry.Version),
		)
	}
	return entry, applied, nil
}
