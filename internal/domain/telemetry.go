package domain

import "time"

// TelemetryReading 单条上报数据
// seq 可选：设备端维护的单调序列号，缺省时由准入网关补齐
type TelemetryReading struct {
	DeviceID   string `json:"device_id"`
	Capability string `json:"capability"`
	Value      any    `json:"value"`
	Timestamp  int64  `json:"timestamp"` // Unix 毫秒
	Seq        *int64 `json:"seq,omitempty"`
	Room       string `json:"room,omitempty"` // 房间/分区（用于 fanout 路由，可选）
}

// BatchReading 批量包内的单条读数
type BatchReading struct {
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// BatchEnvelope 设备批量上报包（降低逐条消息开销）
// 每条读数独立走完整的准入/隐私管线
type BatchEnvelope struct {
	DeviceID  string         `json:"device_id"`
	Timestamp int64          `json:"timestamp"`
	Type      string         `json:"type"`
	Readings  []BatchReading `json:"readings"`
}

// TelemetryRecord 落库的最小化后数据（仅在隐私管线放行后写入）
type TelemetryRecord struct {
	ID            int64     `db:"id"`
	DeviceID      string    `db:"device_id"`
	Capability    string    `db:"capability"`
	DataClass     DataClass `db:"data_class"`
	Value         any       `db:"value"` // 最小化后的值，JSONB
	PolicyVersion string    `db:"policy_version"`
	Timestamp     int64     `db:"timestamp"` // 上报时间，已按粒度取整
	CreatedAt     time.Time `db:"created_at"`
}
