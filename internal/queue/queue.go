package queue

import (
	"errors"
	"sync"

	"wisefido-hub/internal/domain"
)

// ErrQueueFull 有界队列已满（拒绝新入队，不丢弃已接受的指令）
var ErrQueueFull = errors.New("command queue full")

// PriorityQueue 三级 FIFO 指令队列
// 出队顺序：emergency 先于 routine 先于 background，级内严格按到达顺序；
// 高优先级未排空时低优先级不出队（无跨级防饿死机制）
type PriorityQueue struct {
	mu    sync.Mutex
	tiers map[domain.Priority][]*domain.EnqueuedCommand

	// 单级容量；0 表示无界
	capacity int
}

var dequeueOrder = []domain.Priority{
	domain.PriorityEmergency,
	domain.PriorityRoutine,
	domain.PriorityBackground,
}

func NewPriorityQueue(capacity int) *PriorityQueue {
	return &PriorityQueue{
		tiers: map[domain.Priority][]*domain.EnqueuedCommand{
			domain.PriorityEmergency:  {},
			domain.PriorityRoutine:    {},
			domain.PriorityBackground: {},
		},
		capacity: capacity,
	}
}

// Enqueue 按指令优先级追加到对应级队列
func (q *PriorityQueue) Enqueue(cmd *domain.EnqueuedCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tier, ok := q.tiers[cmd.Priority]
	if !ok {
		tier = q.tiers[domain.PriorityRoutine]
		cmd.Priority = domain.PriorityRoutine
	}
	if q.capacity > 0 && len(tier) >= q.capacity {
		return ErrQueueFull
	}
	q.tiers[cmd.Priority] = append(tier, cmd)
	return nil
}

// Dequeue 弹出最高优先级的队首指令；全空返回 nil
func (q *PriorityQueue) Dequeue() *domain.EnqueuedCommand {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range dequeueOrder {
		tier := q.tiers[p]
		if len(tier) == 0 {
			continue
		}
		cmd := tier[0]
		q.tiers[p] = tier[1:]
		return cmd
	}
	return nil
}

// Len 当前排队总数
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, tier := range q.tiers {
		n += len(tier)
	}
	return n
}
