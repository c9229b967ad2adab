package domain

import "time"

// EventType 内部事件类型（闭集，替代字符串事件名）
type EventType string

const (
	EventDeviceConnected    EventType = "device.connected"
	EventDeviceDisconnected EventType = "device.disconnected"

	EventCommandAccepted   EventType = "command.accepted"
	EventCommandDelivering EventType = "command.delivering"
	EventCommandApplied    EventType = "command.applied"
	EventCommandFailed     EventType = "command.failed"
	EventCommandExpired    EventType = "command.expired"

	EventShadowUpdated EventType = "shadow.updated"

	EventPrivacyAllowed EventType = "privacy.allowed"
	EventPrivacyBlocked EventType = "privacy.blocked"

	EventSecuritySignal EventType = "security.signal"

	EventQuarantineApplied  EventType = "quarantine.applied"
	EventQuarantineReleased EventType = "quarantine.released"
)

// Event 总线事件接口
// 每个事件自带路由所需字段（device/capability/room），fanout 不做二次查询
type Event interface {
	Kind() EventType
	RouteDevice() string
	RouteCapability() string
	RouteRoom() string
}

// EventMeta 事件公共路由字段
type EventMeta struct {
	DeviceID   string    `json:"device_id"`
	Capability string    `json:"capability,omitempty"`
	Room       string    `json:"room,omitempty"`
	At         time.Time `json:"at"`
}

func (m EventMeta) RouteDevice() string     { return m.DeviceID }
func (m EventMeta) RouteCapability() string { return m.Capability }
func (m EventMeta) RouteRoom() string       { return m.Room }

// ConnectivityEvent 设备连通性事件
type ConnectivityEvent struct {
	EventMeta
	Online bool `json:"online"`
}

func (e ConnectivityEvent) Kind() EventType {
	if e.Online {
		return EventDeviceConnected
	}
	return EventDeviceDisconnected
}

// CommandPhase 指令生命周期阶段
type CommandPhase string

const (
	PhaseAccepted   CommandPhase = "accepted"
	PhaseDelivering CommandPhase = "delivering"
	PhaseApplied    CommandPhase = "applied"
	PhaseFailed     CommandPhase = "failed"
	PhaseExpired    CommandPhase = "expired"
)

// CommandEvent 指令生命周期事件
type CommandEvent struct {
	EventMeta
	Phase     CommandPhase `json:"phase"`
	CommandID string       `json:"command_id"`
	Priority  Priority     `json:"priority"`
	Reason    string       `json:"reason,omitempty"` // failed/expired 时的说明
}

func (e CommandEvent) Kind() EventType { return EventType("command." + string(e.Phase)) }

// ShadowEvent 影子更新事件（携带新版本和完整 reported 文档）
type ShadowEvent struct {
	EventMeta
	Version  int64          `json:"version"`
	Reported map[string]any `json:"reported"`
}

func (e ShadowEvent) Kind() EventType { return EventShadowUpdated }

// RouteCapability 影子事件优先用公共路由字段，缺省回退到 reported 内嵌的 capability
func (e ShadowEvent) RouteCapability() string {
	if e.EventMeta.Capability != "" {
		return e.EventMeta.Capability
	}
	if v, ok := e.Reported["capability"].(string); ok {
		return v
	}
	return ""
}

// PrivacyEvent 隐私管线放行/拦截事件
type PrivacyEvent struct {
	EventMeta
	Allowed       bool   `json:"allowed"`
	PolicyVersion string `json:"policy_version"`
	Reason        string `json:"reason,omitempty"`
}

func (e PrivacyEvent) Kind() EventType {
	if e.Allowed {
		return EventPrivacyAllowed
	}
	return EventPrivacyBlocked
}

// SecurityEvent 入侵信号事件
type SecurityEvent struct {
	EventMeta
	Signal IntrusionSignal `json:"signal"`
}

func (e SecurityEvent) Kind() EventType { return EventSecuritySignal }

// QuarantineEvent 隔离动作事件
type QuarantineEvent struct {
	EventMeta
	Mode     QuarantineMode `json:"mode,omitempty"`
	Released bool           `json:"released"`
}

func (e QuarantineEvent) Kind() EventType {
	if e.Released {
		return EventQuarantineReleased
	}
	return EventQuarantineApplied
}
