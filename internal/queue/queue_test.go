package queue

import (
	"fmt"
	"testing"

	"wisefido-hub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmd(id string, p domain.Priority) *domain.EnqueuedCommand {
	return &domain.EnqueuedCommand{CommandID: id, DeviceID: "d1", Priority: p}
}

func TestPriorityQueue_TierOrdering(t *testing.T) {
	q := NewPriorityQueue(0)

	// 交错入队
	require.NoError(t, q.Enqueue(cmd("b1", domain.PriorityBackground)))
	require.NoError(t, q.Enqueue(cmd("r1", domain.PriorityRoutine)))
	require.NoError(t, q.Enqueue(cmd("e1", domain.PriorityEmergency)))
	require.NoError(t, q.Enqueue(cmd("r2", domain.PriorityRoutine)))
	require.NoError(t, q.Enqueue(cmd("e2", domain.PriorityEmergency)))

	// 出队：emergency 全部在前，级内保持到达顺序
	var got []string
	for c := q.Dequeue(); c != nil; c = q.Dequeue() {
		got = append(got, c.CommandID)
	}
	assert.Equal(t, []string{"e1", "e2", "r1", "r2", "b1"}, got)
}

func TestPriorityQueue_EmptyDequeue(t *testing.T) {
	q := NewPriorityQueue(0)
	assert.Nil(t, q.Dequeue())
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueue_BoundedRejectsNew(t *testing.T) {
	q := NewPriorityQueue(2)

	require.NoError(t, q.Enqueue(cmd("r1", domain.PriorityRoutine)))
	require.NoError(t, q.Enqueue(cmd("r2", domain.PriorityRoutine)))

	err := q.Enqueue(cmd("r3", domain.PriorityRoutine))
	assert.ErrorIs(t, err, ErrQueueFull)

	// 其它级不受影响
	assert.NoError(t, q.Enqueue(cmd("e1", domain.PriorityEmergency)))

	// 排空后恢复
	q.Dequeue()
	q.Dequeue()
	assert.NoError(t, q.Enqueue(cmd("r4", domain.PriorityRoutine)))
}

func TestPriorityQueue_LowerTierDrainsOnlyWhenHigherEmpty(t *testing.T) {
	q := NewPriorityQueue(0)

	require.NoError(t, q.Enqueue(cmd("b1", domain.PriorityBackground)))
	require.NoError(t, q.Enqueue(cmd("e1", domain.PriorityEmergency)))

	assert.Equal(t, "e1", q.Dequeue().CommandID)

	// 出队间隙再来一条高优先级，依然先出
	require.NoError(t, q.Enqueue(cmd("r1", domain.PriorityRoutine)))
	assert.Equal(t, "r1", q.Dequeue().CommandID)
	assert.Equal(t, "b1", q.Dequeue().CommandID)
}

func TestPriorityQueue_ConcurrentEnqueueDequeue(t *testing.T) {
	q := NewPriorityQueue(0)
	done := make(chan struct{})

	go func() {
		for i := 0; i < 100; i++ {
			_ = q.Enqueue(cmd(fmt.Sprintf("c%d", i), domain.PriorityRoutine))
		}
		close(done)
	}()

	seen := 0
	for seen < 100 {
		if c := q.Dequeue(); c != nil {
			seen++
		}
	}
	<-done
	assert.Equal(t, 0, q.Len())
}
