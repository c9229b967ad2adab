package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-hub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingBus 收集事件供断言
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Emit(e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) kinds() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.Kind()
	}
	return out
}

// fakeTransport 可编程投递结果
type fakeTransport struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (t *fakeTransport) Deliver(_ context.Context, cmd *domain.EnqueuedCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.delivered = append(t.delivered, cmd.CommandID)
	return nil
}

func newTestWorker(q *PriorityQueue, tr Transport, bus Publisher) *Worker {
	return NewWorker(q, tr, bus, 5*time.Millisecond, time.Second, zap.NewNop())
}

func TestWorker_DeliversAndEmitsLifecycle(t *testing.T) {
	q := NewPriorityQueue(0)
	bus := &recordingBus{}
	tr := &fakeTransport{}
	w := newTestWorker(q, tr, bus)

	require.NoError(t, q.Enqueue(cmd("c1", domain.PriorityRoutine)))

	w.process(context.Background(), q.Dequeue())

	assert.Equal(t, []string{"c1"}, tr.delivered)
	assert.Equal(t, []domain.EventType{domain.EventCommandDelivering, domain.EventCommandApplied}, bus.kinds())
}

func TestWorker_FailedDeliveryEmitsFailedAndContinues(t *testing.T) {
	q := NewPriorityQueue(0)
	bus := &recordingBus{}
	tr := &fakeTransport{err: errors.New("device unreachable")}
	w := newTestWorker(q, tr, bus)

	w.process(context.Background(), cmd("c1", domain.PriorityRoutine))

	kinds := bus.kinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, domain.EventCommandFailed, kinds[1])

	failed := bus.events[1].(domain.CommandEvent)
	assert.Contains(t, failed.Reason, "device unreachable")

	// 失败后仍能正常处理后续指令
	tr.err = nil
	w.process(context.Background(), cmd("c2", domain.PriorityRoutine))
	assert.Equal(t, []string{"c2"}, tr.delivered)
}

func TestWorker_ExpiredCommandSkipsDelivery(t *testing.T) {
	q := NewPriorityQueue(0)
	bus := &recordingBus{}
	tr := &fakeTransport{}
	w := newTestWorker(q, tr, bus)

	past := time.Now().Add(-time.Minute)
	c := cmd("c1", domain.PriorityEmergency)
	c.Deadline = &past

	w.process(context.Background(), c)

	// 不做投递尝试，终态 expired
	assert.Empty(t, tr.delivered)
	assert.Equal(t, []domain.EventType{domain.EventCommandExpired}, bus.kinds())
}

func TestWorker_FutureDeadlineStillDelivers(t *testing.T) {
	q := NewPriorityQueue(0)
	bus := &recordingBus{}
	tr := &fakeTransport{}
	w := newTestWorker(q, tr, bus)

	future := time.Now().Add(time.Hour)
	c := cmd("c1", domain.PriorityRoutine)
	c.Deadline = &future

	w.process(context.Background(), c)

	assert.Equal(t, []string{"c1"}, tr.delivered)
}

func TestWorker_RunDrainsQueueAndStopsOnCancel(t *testing.T) {
	q := NewPriorityQueue(0)
	bus := &recordingBus{}
	tr := &fakeTransport{}
	w := newTestWorker(q, tr, bus)

	require.NoError(t, q.Enqueue(cmd("c1", domain.PriorityEmergency)))
	require.NoError(t, q.Enqueue(cmd("c2", domain.PriorityRoutine)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return len(tr.delivered) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
