package security

import (
	"sync"
	"time"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// SignalSink 入侵信号接收端（通常是事件总线适配）
type SignalSink func(signal domain.IntrusionSignal)

// Detector 入侵检测器
// 自身只做序列号回退/重放判定；其余信号变体（capability_mutation、
// forbidden_source、command_effect_mismatch）由各调用点构造后经 Observe 汇入同一 sink
type Detector struct {
	mu      sync.Mutex
	lastSeq map[string]int64

	sink   SignalSink
	logger *zap.Logger
	now    func() time.Time
}

func NewDetector(sink SignalSink, logger *zap.Logger) *Detector {
	return &Detector{
		lastSeq: map[string]int64{},
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// OnSequence 检查设备序列号流
// seq == last 视为重放，seq < last 视为序列回退；两者都产生信号但不中断调用方
func (d *Detector) OnSequence(deviceID string, seq int64) {
	d.mu.Lock()
	last, seen := d.lastSeq[deviceID]
	if !seen {
		last = -1
	}
	if seq > last {
		d.lastSeq[deviceID] = seq
	}
	d.mu.Unlock()

	if !seen || seq > last {
		return
	}

	kind := domain.SignalSequenceRegression
	if seq == last {
		kind = domain.SignalReplay
	}
	d.emit(domain.IntrusionSignal{
		Kind:        kind,
		DeviceID:    deviceID,
		ObservedSeq: seq,
		LastSeq:     last,
		At:          d.now(),
	})
}

// Observe 其它调用点产生的信号变体汇入
func (d *Detector) Observe(signal domain.IntrusionSignal) {
	if signal.At.IsZero() {
		signal.At = d.now()
	}
	d.emit(signal)
}

func (d *Detector) emit(signal domain.IntrusionSignal) {
	d.logger.Warn("Intrusion signal",
		zap.String("kind", string(signal.Kind)),
		zap.String("device_id", signal.DeviceID),
		zap.Int64("observed_seq", signal.ObservedSeq),
		zap.Int64("last_seq", signal.LastSeq),
	)
	if d.sink != nil {
		d.sink(signal)
	}
}
