package gate

import (
	"sync"
	"time"
)

// 拒绝原因
const (
	ReasonRateLimited        = "rate_limited"
	ReasonSequenceRegression = "sequence_regression"
)

// Decision 准入结果
// Seq 为生效的序列号（调用方未提供时由网关补齐 lastSeq+1）
type Decision struct {
	Allowed bool
	Reason  string
	Seq     int64
}

// deviceWindow 单设备计数窗口 + 序列号状态
// 每设备独立加锁，跨设备互不竞争
type deviceWindow struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	lastSeq     int64
	lastTouch   time.Time
}

// Gate 上报准入网关：滑动窗口限流 + 单调序列号校验
type Gate struct {
	mu      sync.RWMutex
	devices map[string]*deviceWindow

	window time.Duration
	limit  int
	now    func() time.Time

	// 空闲窗口淘汰：设备数超过 sweepThreshold 时在 Admit 内顺带清理
	sweepThreshold int
	idleTTL        time.Duration
}

func NewGate(windowMs int64, limit int) *Gate {
	return &Gate{
		devices:        map[string]*deviceWindow{},
		window:         time.Duration(windowMs) * time.Millisecond,
		limit:          limit,
		now:            time.Now,
		sweepThreshold: 10000,
		idleTTL:        time.Hour,
	}
}

func (g *Gate) device(deviceID string) *deviceWindow {
	g.mu.RLock()
	w, ok := g.devices[deviceID]
	g.mu.RUnlock()
	if ok {
		return w
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok = g.devices[deviceID]; ok {
		return w
	}
	if len(g.devices) >= g.sweepThreshold {
		g.sweepLocked()
	}
	w = &deviceWindow{lastSeq: -1}
	g.devices[deviceID] = w
	return w
}

// sweepLocked 淘汰超过 idleTTL 未活跃的设备窗口（调用方持写锁）
func (g *Gate) sweepLocked() {
	cutoff := g.now().Add(-g.idleTTL)
	for id, w := range g.devices {
		if w.lastTouch.Before(cutoff) {
			delete(g.devices, id)
		}
	}
}

// Admit 准入判定
// seq 为 nil 时由网关补齐 lastSeq+1；seq <= lastSeq 拒绝（可疑重放，调用方可转交入侵检测）
func (g *Gate) Admit(deviceID string, seq *int64) Decision {
	w := g.device(deviceID)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := g.now()
	w.lastTouch = now

	// 滑动窗口：窗口过期则重置
	if now.Sub(w.windowStart) > g.window {
		w.count = 0
		w.windowStart = now
	}
	w.count++
	if w.count > g.limit {
		return Decision{Allowed: false, Reason: ReasonRateLimited}
	}

	effective := w.lastSeq + 1
	if seq != nil {
		effective = *seq
	}
	if effective <= w.lastSeq {
		return Decision{Allowed: false, Reason: ReasonSequenceRegression, Seq: effective}
	}
	w.lastSeq = effective

	return Decision{Allowed: true, Seq: effective}
}

// LastSeq 返回设备当前已接受的序列号（未见过的设备返回 -1）
func (g *Gate) LastSeq(deviceID string) int64 {
	g.mu.RLock()
	w, ok := g.devices[deviceID]
	g.mu.RUnlock()
	if !ok {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}
