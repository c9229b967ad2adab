package repository

import (
	"context"
	"sync"
	"time"

	"wisefido-hub/internal/domain"
)

// MemoryShadowStore DB 未就绪时的进程内影子存储
// 每设备一把锁：version 比较与写入在锁内完成，跨设备完全并行
type MemoryShadowStore struct {
	mu      sync.RWMutex
	entries map[string]*shadowSlot

	now func() time.Time
}

type shadowSlot struct {
	mu    sync.Mutex
	entry *domain.ShadowEntry
}

func NewMemoryShadowStore() *MemoryShadowStore {
	return &MemoryShadowStore{
		entries: map[string]*shadowSlot{},
		now:     time.Now,
	}
}

var _ ShadowStore = (*MemoryShadowStore)(nil)

func (s *MemoryShadowStore) slot(deviceID string) *shadowSlot {
	s.mu.RLock()
	slot, ok := s.entries[deviceID]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.entries[deviceID]; ok {
		return slot
	}
	slot = &shadowSlot{}
	s.entries[deviceID] = slot
	return slot
}

func (s *MemoryShadowStore) Get(_ context.Context, deviceID string) (*domain.ShadowEntry, error) {
	s.mu.RLock()
	slot, ok := s.entries[deviceID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.entry == nil {
		return nil, nil
	}
	return slot.entry.Clone(), nil
}

func (s *MemoryShadowStore) ApplyUpdate(_ context.Context, deviceID string, version int64, patch map[string]any) (*domain.ShadowEntry, bool, error) {
	slot := s.slot(deviceID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	current := slot.entry
	if current == nil {
		current = domain.ZeroShadow(deviceID)
	}

	// version <= current：写入不生效，原样返回当前文档
	if version <= current.Version {
		return current.Clone(), false, nil
	}

	next := &domain.ShadowEntry{
		DeviceID:  deviceID,
		Version:   version,
		Reported:  domain.ShallowMerge(current.Reported, patch),
		UpdatedAt: s.now().UnixMilli(),
	}
	slot.entry = next
	return next.Clone(), true, nil
}
