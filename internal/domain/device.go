package domain

import "time"

// 设备状态（devices 表 status 字段）
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
)

// DeviceRecord 设备领域模型（对应 devices 表）
// 设备首次上报时自动创建，之后只更新状态和能力集，不会被隐式删除
type DeviceRecord struct {
	DeviceID     string    `db:"device_id"`
	Capabilities []string  `db:"capabilities"` // 能力集（battery, lock, thermostat 等）
	Status       string    `db:"status"`       // NOT NULL, default 'offline'
	PushURL      string    `db:"push_url"`     // HTTP 推送地址（可选，为空时用 MQTT 下发）
	CreatedAt    time.Time `db:"created_at"`
	LastSeenAt   time.Time `db:"last_seen_at"`
}

// HasCapability 判断设备是否声明过某能力
func (d *DeviceRecord) HasCapability(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (d *DeviceRecord) ToJSON() map[string]any {
	return map[string]any{
		"device_id":    d.DeviceID,
		"capabilities": d.Capabilities,
		"status":       d.Status,
		"created_at":   d.CreatedAt.UnixMilli(),
		"last_seen_at": d.LastSeenAt.UnixMilli(),
	}
}
