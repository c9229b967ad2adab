package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"wisefido-hub/internal/domain"
)

// MemoryDevicesRepo DB 未就绪时的进程内设备库
type MemoryDevicesRepo struct {
	mu      sync.RWMutex
	devices map[string]*domain.DeviceRecord
}

func NewMemoryDevicesRepo() *MemoryDevicesRepo {
	return &MemoryDevicesRepo{devices: map[string]*domain.DeviceRecord{}}
}

var _ DevicesRepository = (*MemoryDevicesRepo)(nil)

func (r *MemoryDevicesRepo) GetDevice(_ context.Context, deviceID string) (*domain.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *d
	clone.Capabilities = append([]string(nil), d.Capabilities...)
	return &clone, nil
}

func (r *MemoryDevicesRepo) ListDevices(_ context.Context, page, size int) ([]*domain.DeviceRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.DeviceRecord{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}

	out := make([]*domain.DeviceRecord, 0, end-start)
	for _, id := range ids[start:end] {
		d := r.devices[id]
		clone := *d
		clone.Capabilities = append([]string(nil), d.Capabilities...)
		out = append(out, &clone)
	}
	return out, total, nil
}

func (r *MemoryDevicesRepo) TouchOnSeen(_ context.Context, deviceID, capability string, seenAt time.Time) (*domain.DeviceRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		d = &domain.DeviceRecord{
			DeviceID:   deviceID,
			Status:     domain.DeviceStatusOnline,
			CreatedAt:  seenAt,
			LastSeenAt: seenAt,
		}
		if capability != "" {
			d.Capabilities = []string{capability}
		}
		r.devices[deviceID] = d
		clone := *d
		clone.Capabilities = append([]string(nil), d.Capabilities...)
		return &clone, true, nil
	}

	cameOnline := d.Status != domain.DeviceStatusOnline
	d.Status = domain.DeviceStatusOnline
	d.LastSeenAt = seenAt
	if capability != "" && !d.HasCapability(capability) {
		d.Capabilities = append(d.Capabilities, capability)
	}

	clone := *d
	clone.Capabilities = append([]string(nil), d.Capabilities...)
	return &clone, cameOnline, nil
}

func (r *MemoryDevicesRepo) SetStatus(_ context.Context, deviceID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

// SetPushURL 配置设备的 HTTP 推送地址（为空时指令走 MQTT 下发）
func (r *MemoryDevicesRepo) SetPushURL(_ context.Context, deviceID, pushURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	d.PushURL = pushURL
	return nil
}
