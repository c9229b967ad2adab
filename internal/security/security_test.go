package security

import (
	"sync"
	"testing"

	"wisefido-hub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type signalRecorder struct {
	mu      sync.Mutex
	signals []domain.IntrusionSignal
}

func (r *signalRecorder) sink(s domain.IntrusionSignal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func TestDetector_SequenceRegression(t *testing.T) {
	rec := &signalRecorder{}
	d := NewDetector(rec.sink, zap.NewNop())

	// 正常前进：无信号
	d.OnSequence("d1", 1)
	d.OnSequence("d1", 2)
	assert.Empty(t, rec.signals)

	// 回退：sequence_regression
	d.OnSequence("d1", 1)
	require.Len(t, rec.signals, 1)
	assert.Equal(t, domain.SignalSequenceRegression, rec.signals[0].Kind)
	assert.Equal(t, int64(1), rec.signals[0].ObservedSeq)
	assert.Equal(t, int64(2), rec.signals[0].LastSeq)
}

func TestDetector_Replay(t *testing.T) {
	rec := &signalRecorder{}
	d := NewDetector(rec.sink, zap.NewNop())

	d.OnSequence("d1", 5)
	d.OnSequence("d1", 5)

	require.Len(t, rec.signals, 1)
	assert.Equal(t, domain.SignalReplay, rec.signals[0].Kind)
}

func TestDetector_FirstSequenceNeverSignals(t *testing.T) {
	rec := &signalRecorder{}
	d := NewDetector(rec.sink, zap.NewNop())

	// 首次观测任何值都不算回退
	d.OnSequence("d1", 0)
	d.OnSequence("d2", 100)
	assert.Empty(t, rec.signals)
}

func TestDetector_ObservePassthrough(t *testing.T) {
	rec := &signalRecorder{}
	d := NewDetector(rec.sink, zap.NewNop())

	d.Observe(domain.IntrusionSignal{
		Kind:       domain.SignalCapabilityMutation,
		DeviceID:   "d1",
		Capability: "lock",
	})

	require.Len(t, rec.signals, 1)
	assert.Equal(t, domain.SignalCapabilityMutation, rec.signals[0].Kind)
	assert.False(t, rec.signals[0].At.IsZero())
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Emit(e domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestQuarantine_Lifecycle(t *testing.T) {
	rec := &eventRecorder{}
	q := NewQuarantine(rec, zap.NewNop())

	assert.False(t, q.IsBlocked("d1"))
	assert.False(t, q.IsRestricted("d1"))

	// read_only：不拦上报路径，只算受限
	q.Apply("d1", domain.QuarantineReadOnly)
	assert.False(t, q.IsBlocked("d1"))
	assert.True(t, q.IsRestricted("d1"))

	// block：全部拦截
	q.Apply("d1", domain.QuarantineBlock)
	assert.True(t, q.IsBlocked("d1"))

	q.Release("d1")
	assert.False(t, q.IsBlocked("d1"))
	assert.False(t, q.IsRestricted("d1"))

	kinds := make([]domain.EventType, len(rec.events))
	for i, e := range rec.events {
		kinds[i] = e.Kind()
	}
	assert.Equal(t, []domain.EventType{
		domain.EventQuarantineApplied,
		domain.EventQuarantineApplied,
		domain.EventQuarantineReleased,
	}, kinds)
}

func TestQuarantine_ReleaseAbsentIsNoop(t *testing.T) {
	rec := &eventRecorder{}
	q := NewQuarantine(rec, zap.NewNop())

	q.Release("ghost")
	assert.False(t, q.IsRestricted("ghost"))
}
