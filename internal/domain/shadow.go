package domain

// ShadowEntry 设备影子（服务端保存的 reported 状态文档）
// version 单调递增，从 0 开始；写入仅在 incomingVersion > currentVersion 时生效，
// 否则原样返回当前文档（调用方通过比较 version 区分"被拒"和"冗余"）
type ShadowEntry struct {
	DeviceID  string         `json:"device_id"`
	Version   int64          `json:"version"`
	Reported  map[string]any `json:"reported"`
	UpdatedAt int64          `json:"updated_at"` // Unix 毫秒，零值表示从未写入
}

// ZeroShadow 影子不存在时的默认文档
func ZeroShadow(deviceID string) *ShadowEntry {
	return &ShadowEntry{
		DeviceID: deviceID,
		Version:  0,
		Reported: map[string]any{},
	}
}

// ShallowMerge 浅合并：patch 的键覆盖，其余键保留
// 返回新 map，不修改入参
func ShallowMerge(current, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Clone 复制影子文档（repository 返回前复制，避免调用方改写内部状态）
func (s *ShadowEntry) Clone() *ShadowEntry {
	reported := make(map[string]any, len(s.Reported))
	for k, v := range s.Reported {
		reported[k] = v
	}
	return &ShadowEntry{
		DeviceID:  s.DeviceID,
		Version:   s.Version,
		Reported:  reported,
		UpdatedAt: s.UpdatedAt,
	}
}
