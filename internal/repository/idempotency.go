package repository

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// MemoryIdempotencyLedger 进程内幂等台账
// check-then-insert 在一把锁内完成；记录带 TTL，超量时顺带清理过期项
type MemoryIdempotencyLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> recordedAt

	ttl time.Duration
	now func() time.Time

	sweepThreshold int
}

func NewMemoryIdempotencyLedger(ttl time.Duration) *MemoryIdempotencyLedger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryIdempotencyLedger{
		seen:           map[string]time.Time{},
		ttl:            ttl,
		now:            time.Now,
		sweepThreshold: 100000,
	}
}

var _ IdempotencyLedger = (*MemoryIdempotencyLedger)(nil)

func (l *MemoryIdempotencyLedger) CheckAndRecord(_ context.Context, deviceID, key string) (bool, error) {
	composite := deviceID + ":" + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.seen[composite]; ok {
		if now.Sub(at) <= l.ttl {
			return false, nil
		}
		// 过期记录视同未见过
	}

	if len(l.seen) >= l.sweepThreshold {
		cutoff := now.Add(-l.ttl)
		for k, at := range l.seen {
			if at.Before(cutoff) {
				delete(l.seen, k)
			}
		}
	}

	l.seen[composite] = now
	return true, nil
}

// RedisIdempotencyLedger Redis 实现：SET NX EX 单命令即原子 check-and-record
type RedisIdempotencyLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyLedger(client *redis.Client, ttl time.Duration) *RedisIdempotencyLedger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyLedger{client: client, ttl: ttl}
}

var _ IdempotencyLedger = (*RedisIdempotencyLedger)(nil)

func (l *RedisIdempotencyLedger) CheckAndRecord(ctx context.Context, deviceID, key string) (bool, error) {
	return l.client.SetNX(ctx, "idem:"+deviceID+":"+key, "1", l.ttl).Result()
}
