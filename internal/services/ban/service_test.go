package ban

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"exchange/internal/repositories/repotest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingAbuse struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingAbuse) LogAbuse(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingAbuse) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ map[string]any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return true
}

func newTestService(t *testing.T, clock *fakeClock, opts ...Option) (*Service, *recordingAbuse) {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "banned_ips.json"))
	require.NoError(t, err)
	audit := &recordingAbuse{}
	opts = append([]Option{WithClock(clock.Now), WithAbuseLogger(audit)}, opts...)
	return NewService(store, NewMemoryOffenders(), opts...), audit
}

func TestBan_EscalatesWithOffenses(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	for offense := 1; offense <= 8; offense++ {
		res, err := svc.Ban(ctx, "10.0.0.5", "too many failed logins")
		require.NoError(t, err)

		expected := offense
		if expected > 6 {
			expected = 6
		}
		assert.Equal(t, offense, res.Offenses)
		assert.Equal(t, time.Duration(expected)*time.Hour, res.Duration, "offense %d", offense)
		assert.Equal(t, clock.Now().Add(res.Duration), res.ExpiresAt)
	}
}

func TestBan_CustomConfig(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(t, clock, WithConfig(Config{BaseDuration: 10 * time.Minute, MaxMultiplier: 2}))
	ctx := context.Background()

	first, err := svc.Ban(ctx, "192.0.2.1", "x")
	require.NoError(t, err)
	second, err := svc.Ban(ctx, "192.0.2.1", "x")
	require.NoError(t, err)
	third, err := svc.Ban(ctx, "192.0.2.1", "x")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, first.Duration)
	assert.Equal(t, 20*time.Minute, second.Duration)
	assert.Equal(t, 20*time.Minute, third.Duration)
}

func TestIsBanned_ExpiresLazily(t *testing.T) {
	clock := newFakeClock()
	svc, audit := newTestService(t, clock)
	ctx := context.Background()

	banned, err := svc.IsBanned(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, banned)

	_, err = svc.Ban(ctx, "10.0.0.5", "test")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	banned, err = svc.IsBanned(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, banned)

	clock.Advance(time.Minute)
	banned, err = svc.IsBanned(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, banned)
	assert.True(t, audit.contains("Ban expired for IP 10.0.0.5"))

	_, found, err := svc.store.Get(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnban(t *testing.T) {
	clock := newFakeClock()
	svc, audit := newTestService(t, clock)
	ctx := context.Background()

	existed, err := svc.Unban(ctx, "10.0.0.9", "alice")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = svc.Ban(ctx, "10.0.0.9", "test")
	require.NoError(t, err)

	existed, err = svc.Unban(ctx, "10.0.0.9", "alice")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.True(t, audit.contains("Unbanned IP 10.0.0.9 by alice"))

	banned, err := svc.IsBanned(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestManualBan_ValidatesIP(t *testing.T) {
	svc, audit := newTestService(t, newFakeClock())

	_, err := svc.ManualBan(context.Background(), "not-an-ip", "alice", "")
	assert.Error(t, err)

	res, err := svc.ManualBan(context.Background(), " 2001:db8::1 ", "alice", "scraping")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", res.IPAddress)
	assert.True(t, audit.contains("scraping (by alice)"))
}

func TestBan_AlertsRepeatOffenders(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, newFakeClock(), WithNotifier(pub))
	ctx := context.Background()

	_, err := svc.Ban(ctx, "10.0.0.7", "x")
	require.NoError(t, err)
	assert.NotContains(t, pub.events, "security.repeat_offender")

	_, err = svc.Ban(ctx, "10.0.0.7", "x")
	require.NoError(t, err)
	assert.Contains(t, pub.events, "security.repeat_offender")
}

func TestList_SkipsExpired(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	_, err := svc.Ban(ctx, "10.0.0.1", "x")
	require.NoError(t, err)
	_, err = svc.Ban(ctx, "10.0.0.2", "x")
	require.NoError(t, err)
	_, err = svc.Ban(ctx, "10.0.0.2", "x")
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)
	bans, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "10.0.0.2", bans[0].IPAddress)
}

func TestFileStore_PersistsJSONMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bans.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "10.0.0.5", 1714567890000, "reason"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"10.0.0.5": 1714567890000}`, string(data))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	expiry, found, err := reopened.Get(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1714567890000), expiry)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "10.0.0.5")
	assert.Error(t, err)
}

func TestDBStore_UpsertAndDelete(t *testing.T) {
	store := NewDBStore(repotest.NewDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "10.0.0.5", 1000, "first"))
	require.NoError(t, store.Put(ctx, "10.0.0.5", 2000, "second"))

	expiry, found, err := store.Get(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2000), expiry)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"10.0.0.5": 2000}, all)

	deleted, err := store.Delete(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisOffenders_Increment(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counter := NewRedisOffenders(client, 24*time.Hour)
	ctx := context.Background()

	n, err := counter.Increment(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = counter.Increment(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 24*time.Hour, mr.TTL(offenderKeyPrefix+"10.0.0.5"))
}
