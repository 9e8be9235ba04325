package attempts

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Entry is the per-IP failed-login record.
type Entry struct {
	Count                int
	FirstAttemptAtMillis int64
	ShowCaptcha          bool
}

// Store holds failed-login entries. MemoryStore serves a single instance;
// RedisStore shares entries across instances.
type Store interface {
	// Increment bumps the count for ip, initializing the first-attempt
	// timestamp when the entry is new, and returns the updated entry.
	Increment(ctx context.Context, ip string, nowMillis int64) (Entry, error)
	MarkCaptcha(ctx context.Context, ip string) error
	Get(ctx context.Context, ip string) (Entry, bool, error)
	Delete(ctx context.Context, ip string) error
	// DeleteStale removes entries whose first attempt is before cutoffMillis.
	DeleteStale(ctx context.Context, cutoffMillis int64) (int, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Increment(_ context.Context, ip string, nowMillis int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ip]
	if !ok {
		e = &Entry{FirstAttemptAtMillis: nowMillis}
		s.entries[ip] = e
	}
	e.Count++
	return *e, nil
}

func (s *MemoryStore) MarkCaptcha(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[ip]; ok {
		e.ShowCaptcha = true
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ip string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ip]
	if !ok {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ip)
	return nil
}

func (s *MemoryStore) DeleteStale(_ context.Context, cutoffMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ip, e := range s.entries {
		if e.FirstAttemptAtMillis < cutoffMillis {
			delete(s.entries, ip)
			removed++
		}
	}
	return removed, nil
}

const (
	redisKeyPrefix = "attempts:"
	redisIndexKey  = "attempts:index"

	fieldCount   = "count"
	fieldFirst   = "first"
	fieldCaptcha = "captcha"
)

// RedisStore keeps each entry in a hash and indexes first-attempt times in a
// sorted set so the sweep does not have to scan the keyspace.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, ip string, nowMillis int64) (Entry, error) {
	key := redisKeyPrefix + ip
	pipe := s.client.TxPipeline()
	count := pipe.HIncrBy(ctx, key, fieldCount, 1)
	pipe.HSetNX(ctx, key, fieldFirst, nowMillis)
	pipe.ZAddNX(ctx, redisIndexKey, redis.Z{Score: float64(nowMillis), Member: ip})
	fields := pipe.HMGet(ctx, key, fieldFirst, fieldCaptcha)
	if _, err := pipe.Exec(ctx); err != nil {
		return Entry{}, fmt.Errorf("increment failed attempts: %w", err)
	}

	entry := Entry{Count: int(count.Val())}
	vals := fields.Val()
	entry.FirstAttemptAtMillis = parseInt(vals[0])
	entry.ShowCaptcha = parseInt(vals[1]) == 1
	return entry, nil
}

func (s *RedisStore) MarkCaptcha(ctx context.Context, ip string) error {
	key := redisKeyPrefix + ip
	// HSET on a deleted key would resurrect a partial entry.
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mark captcha: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, fieldCaptcha, 1).Err(); err != nil {
		return fmt.Errorf("mark captcha: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, ip string) (Entry, bool, error) {
	vals, err := s.client.HGetAll(ctx, redisKeyPrefix+ip).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("get failed attempts: %w", err)
	}
	if len(vals) == 0 {
		return Entry{}, false, nil
	}
	return Entry{
		Count:                int(parseInt(vals[fieldCount])),
		FirstAttemptAtMillis: parseInt(vals[fieldFirst]),
		ShowCaptcha:          vals[fieldCaptcha] == "1",
	}, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, ip string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+ip)
	pipe.ZRem(ctx, redisIndexKey, ip)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete failed attempts: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteStale(ctx context.Context, cutoffMillis int64) (int, error) {
	ips, err := s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoffMillis, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list stale attempts: %w", err)
	}
	if len(ips) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ips))
	members := make([]any, len(ips))
	for i, ip := range ips {
		keys[i] = redisKeyPrefix + ip
		members[i] = ip
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, redisIndexKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete stale attempts: %w", err)
	}
	return len(ips), nil
}

func parseInt(v any) int64 {
	switch x := v.(type) {
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	case int64:
		return x
	default:
		return 0
	}
}
