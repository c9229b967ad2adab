package bus

import (
	"sync"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// 兴趣组名
const (
	GroupAll = "all"
)

func DeviceGroup(deviceID string) string     { return "device:" + deviceID }
func CapabilityGroup(capability string) string { return "capability:" + capability }
func ZoneGroup(room string) string           { return "zone:" + room }

// StreamMessage 推给订阅端的帧：消息名即事件类型
type StreamMessage struct {
	Type  string       `json:"type"`
	Event domain.Event `json:"event"`
}

// Subscriber 订阅端（websocket 客户端实现；Send 不得阻塞）
type Subscriber interface {
	Send(msg StreamMessage)
}

// Fanout 按兴趣组路由事件给流式订阅端
// 组由事件自身字段推导：device/capability/zone，另加全局广播组；
// 订阅端通过 Join 主动加入组，网关不保存组成员之外的订阅状态
type Fanout struct {
	mu     sync.RWMutex
	groups map[string]map[Subscriber]struct{}

	logger *zap.Logger
}

func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{
		groups: map[string]map[Subscriber]struct{}{},
		logger: logger,
	}
}

// Attach 挂到总线上：所有事件经 fanout 路由
func (f *Fanout) Attach(b *Bus) {
	b.OnAll(f.Publish)
}

// Join 订阅端加入一组兴趣组
func (f *Fanout) Join(s Subscriber, groups ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range groups {
		if g == "" {
			continue
		}
		if f.groups[g] == nil {
			f.groups[g] = map[Subscriber]struct{}{}
		}
		f.groups[g][s] = struct{}{}
	}
}

// Leave 订阅端退出全部组（连接关闭时调用）
func (f *Fanout) Leave(s Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for g, members := range f.groups {
		delete(members, s)
		if len(members) == 0 {
			delete(f.groups, g)
		}
	}
}

// Publish 把事件投给命中的兴趣组（全局组始终命中）
// 同一订阅端加入多个命中组时只收一次
func (f *Fanout) Publish(event domain.Event) {
	groups := []string{GroupAll}
	if d := event.RouteDevice(); d != "" {
		groups = append(groups, DeviceGroup(d))
	}
	if c := event.RouteCapability(); c != "" {
		groups = append(groups, CapabilityGroup(c))
	}
	if r := event.RouteRoom(); r != "" {
		groups = append(groups, ZoneGroup(r))
	}

	msg := StreamMessage{Type: string(event.Kind()), Event: event}

	f.mu.RLock()
	targets := map[Subscriber]struct{}{}
	for _, g := range groups {
		for s := range f.groups[g] {
			targets[s] = struct{}{}
		}
	}
	f.mu.RUnlock()

	for s := range targets {
		s.Send(msg)
	}
}

// GroupSize 组内订阅数（测试/监控用）
func (f *Fanout) GroupSize(group string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.groups[group])
}
