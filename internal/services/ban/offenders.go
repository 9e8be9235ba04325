package ban

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OffenderCounter counts how many times an IP has been banned. The count
// drives escalation and repeat-offender alerts.
type OffenderCounter interface {
	Increment(ctx context.Context, ip string) (int, error)
}

// MemoryOffenders lives for the process lifetime and is lost on restart.
type MemoryOffenders struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryOffenders() *MemoryOffenders {
	return &MemoryOffenders{counts: make(map[string]int)}
}

func (m *MemoryOffenders) Increment(_ context.Context, ip string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[ip]++
	return m.counts[ip], nil
}

const offenderKeyPrefix = "ban:offenses:"

// RedisOffenders shares counts across instances. A zero ttl keeps counts
// until Redis is flushed.
type RedisOffenders struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisOffenders(client redis.UniversalClient, ttl time.Duration) *RedisOffenders {
	return &RedisOffenders{client: client, ttl: ttl}
}

func (r *RedisOffenders) Increment(ctx context.Context, ip string) (int, error) {
	key := offenderKeyPrefix + ip
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment offender count: %w", err)
	}
	return int(incr.Val()), nil
}
