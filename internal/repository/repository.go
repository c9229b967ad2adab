package repository

import (
	"context"
	"errors"
	"time"

	"wisefido-hub/internal/domain"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// ShadowStore 设备影子存储接口
// ApplyUpdate 必须对同设备并发调用保持原子（version 比较与写入是单次 CAS），
// 跨设备更新相互独立。
type ShadowStore interface {
	// Get 读取影子；不存在时返回 (nil, nil)
	Get(ctx context.Context, deviceID string) (*domain.ShadowEntry, error)

	// ApplyUpdate 版本门控写入：incomingVersion > currentVersion 时浅合并 patch 并存储，
	// 否则原样返回当前文档。applied 由写入路径本身判定，
	// 不依赖事后读回（并发更高版本写入不会造成误报）
	ApplyUpdate(ctx context.Context, deviceID string, version int64, patch map[string]any) (entry *domain.ShadowEntry, applied bool, err error)
}

// DevicesRepository 设备Repository接口
type DevicesRepository interface {
	GetDevice(ctx context.Context, deviceID string) (*domain.DeviceRecord, error)
	ListDevices(ctx context.Context, page, size int) ([]*domain.DeviceRecord, int, error)

	// TouchOnSeen 设备上报时调用：首次出现自动建档，之后累积能力集、
	// 刷新 last_seen_at 并置为 online。返回 (记录, 是否新建/上线)
	TouchOnSeen(ctx context.Context, deviceID, capability string, seenAt time.Time) (*domain.DeviceRecord, bool, error)

	// SetStatus 连通性变化（online/offline）
	SetStatus(ctx context.Context, deviceID, status string) error
}

// IdempotencyLedger 幂等台账
// CheckAndRecord 必须是单次原子操作：并发的重复提交只有一个返回 true
type IdempotencyLedger interface {
	CheckAndRecord(ctx context.Context, deviceID, key string) (bool, error)
}

// TelemetryRepository 最小化后上报数据的落库接口（可选持久化）
type TelemetryRepository interface {
	Insert(ctx context.Context, rec *domain.TelemetryRecord) error
	GetLatest(ctx context.Context, deviceID string, limit int) ([]*domain.TelemetryRecord, error)
}
