package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryShadowStore_GetAbsent(t *testing.T) {
	s := NewMemoryShadowStore()

	entry, err := s.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryShadowStore_ApplyAndMerge(t *testing.T) {
	s := NewMemoryShadowStore()
	ctx := context.Background()

	entry, applied, err := s.ApplyUpdate(ctx, "d1", 1, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1), entry.Version)
	assert.Equal(t, map[string]any{"a": 1}, entry.Reported)

	// 浅合并：新键加入，旧键保留
	entry, applied, err = s.ApplyUpdate(ctx, "d1", 2, map[string]any{"b": 2})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), entry.Version)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, entry.Reported)

	// 同键覆盖
	entry, _, err = s.ApplyUpdate(ctx, "d1", 3, map[string]any{"a": 9})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 9, "b": 2}, entry.Reported)
}

func TestMemoryShadowStore_StaleVersionIsNoop(t *testing.T) {
	s := NewMemoryShadowStore()
	ctx := context.Background()

	first, _, err := s.ApplyUpdate(ctx, "d1", 1, map[string]any{"x": 1})
	require.NoError(t, err)

	// 相同版本：写入不生效，返回当前文档
	second, applied, err := s.ApplyUpdate(ctx, "d1", 1, map[string]any{"x": 2})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, map[string]any{"x": 1}, second.Reported)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	// 回退版本同理
	third, applied, err := s.ApplyUpdate(ctx, "d1", 0, map[string]any{"x": 3})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, map[string]any{"x": 1}, third.Reported)
}

func TestMemoryShadowStore_AbsentDeviceZeroVersionNoRow(t *testing.T) {
	s := NewMemoryShadowStore()
	ctx := context.Background()

	// 未建档设备配非前进版本：不落文档
	entry, applied, err := s.ApplyUpdate(ctx, "d1", 0, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(0), entry.Version)
	assert.Empty(t, entry.Reported)

	fresh, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, fresh)
}

func TestMemoryShadowStore_ConcurrentVersionMonotonic(t *testing.T) {
	s := NewMemoryShadowStore()
	ctx := context.Background()

	// 并发写同一设备：版本只会前进，不会丢更新
	var wg sync.WaitGroup
	for v := int64(1); v <= 50; v++ {
		wg.Add(1)
		go func(version int64) {
			defer wg.Done()
			_, _, err := s.ApplyUpdate(ctx, "d1", version, map[string]any{"v": version})
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	entry, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), entry.Version)
}

func TestMemoryShadowStore_ReturnedEntryIsCopy(t *testing.T) {
	s := NewMemoryShadowStore()
	ctx := context.Background()

	entry, _, err := s.ApplyUpdate(ctx, "d1", 1, map[string]any{"a": 1})
	require.NoError(t, err)
	entry.Reported["a"] = 99

	fresh, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Reported["a"])
}
