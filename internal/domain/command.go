package domain

import (
	"fmt"
	"time"
)

// Priority 指令优先级（三级队列）
type Priority string

const (
	PriorityEmergency  Priority = "emergency"
	PriorityRoutine    Priority = "routine"
	PriorityBackground Priority = "background"
)

// ParsePriority 解析优先级字符串，空值默认 routine
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", string(PriorityRoutine):
		return PriorityRoutine, nil
	case string(PriorityEmergency):
		return PriorityEmergency, nil
	case string(PriorityBackground):
		return PriorityBackground, nil
	default:
		return "", fmt.Errorf("unknown priority: %s", s)
	}
}

// EnqueuedCommand 已入队指令
// 入队后不再原地修改；出队即从队列移除
// 状态机：enqueued -> (expired | delivering -> applied | delivering -> failed)
type EnqueuedCommand struct {
	CommandID      string         `json:"command_id"`
	DeviceID       string         `json:"device_id"`
	Capability     string         `json:"capability"`
	Params         map[string]any `json:"params"`
	Priority       Priority       `json:"priority"`
	Deadline       *time.Time     `json:"deadline,omitempty"` // 可选；出队时已过期则不再投递
	IdempotencyKey string         `json:"idempotency_key"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
}
