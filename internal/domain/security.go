package domain

import "time"

// SignalKind 入侵信号类型（闭集）
type SignalKind string

const (
	SignalSequenceRegression    SignalKind = "sequence_regression"
	SignalCapabilityMutation    SignalKind = "capability_mutation"
	SignalForbiddenSource       SignalKind = "forbidden_source"
	SignalCommandEffectMismatch SignalKind = "command_effect_mismatch"
	SignalReplay                SignalKind = "replay"
)

// IntrusionSignal 入侵信号
// 仅发布到事件总线，本核心不落库
type IntrusionSignal struct {
	Kind        SignalKind `json:"kind"`
	DeviceID    string     `json:"device_id"`
	ObservedSeq int64      `json:"observed_seq,omitempty"` // sequence_regression / replay
	LastSeq     int64      `json:"last_seq,omitempty"`
	Capability  string     `json:"capability,omitempty"` // capability_mutation / command_effect_mismatch
	Source      string     `json:"source,omitempty"`     // forbidden_source
	Detail      string     `json:"detail,omitempty"`
	At          time.Time  `json:"at"`
}

// QuarantineMode 隔离模式
// read_only 只拦截写入/指令路径，不拦截上报；block 全部拦截（由调用方分别判断）
type QuarantineMode string

const (
	QuarantineReadOnly QuarantineMode = "read_only"
	QuarantineBlock    QuarantineMode = "block"
)

// QuarantineState 设备隔离状态；无记录即未隔离
type QuarantineState struct {
	DeviceID  string         `json:"device_id"`
	Mode      QuarantineMode `json:"mode"`
	AppliedAt time.Time      `json:"applied_at"`
}
