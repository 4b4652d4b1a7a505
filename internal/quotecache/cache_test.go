package quotecache

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

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
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type payload struct {
	Out   string `json:"out"`
	Label string `json:"label"`
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheResult(_ string, hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func backends(t *testing.T) map[string]Backend {
	rb, err := NewRedisBackend(setupTestRedis(t))
	require.NoError(t, err)
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"redis":  rb,
	}
}

func TestCache_FreshThenStale(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			obs := &countingObserver{}
			c := New[payload](backend, WithClock(clock.Now), WithObserver("quotes", obs))
			ctx := context.Background()

			_, ok := c.Get(ctx, "k")
			assert.False(t, ok)

			require.NoError(t, c.Put(ctx, "k", payload{Out: "187500000", Label: "Jupiter"}, 10*time.Second))

			clock.Advance(9 * time.Second)
			e, ok := c.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "187500000", e.Value.Out)
			assert.Equal(t, 9*time.Second, e.Age)

			clock.Advance(time.Second)
			_, ok = c.Get(ctx, "k")
			assert.False(t, ok, "entry is stale once now-fetchedAt reaches ttl")

			stale, ok := c.GetStaleOrMiss(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "Jupiter", stale.Value.Label)
			assert.Equal(t, 10*time.Second, stale.Age)
			assert.False(t, stale.Fresh(clock.Now()))

			_, ok = c.GetStaleOrMiss(ctx, "missing")
			assert.False(t, ok)

			assert.Equal(t, 1, obs.hits)
			assert.Equal(t, 2, obs.misses)
		})
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := New[payload](NewMemoryBackend(), WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", payload{Out: "1"}, time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Put(ctx, "k", payload{Out: "2"}, time.Minute))

	e, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "2", e.Value.Out)
	assert.Equal(t, time.Duration(0), e.Age)
}

type brokenBackend struct{}

func (brokenBackend) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenBackend) Store(context.Context, string, []byte) error {
	return errors.New("connection refused")
}

func TestCache_BackendFailureIsMiss(t *testing.T) {
	c := New[payload](brokenBackend{})
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	_, ok = c.GetStaleOrMiss(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Put(ctx, "k", payload{}, time.Second))
}

func TestRedisBackend_NoExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rb, err := NewRedisBackend(client)
	require.NoError(t, err)

	c := New[payload](rb)
	require.NoError(t, c.Put(context.Background(), MarketKey, payload{Out: "x"}, time.Second))

	assert.True(t, mr.Exists(redisPrefix+MarketKey))
	assert.Equal(t, time.Duration(0), mr.TTL(redisPrefix+MarketKey))
}

func TestNewRedisBackend_NilClient(t *testing.T) {
	_, err := NewRedisBackend(nil)
	assert.Error(t, err)
}

func TestQuoteKey(t *testing.T) {
	assert.Equal(t, "quote:A:B:1250e6", QuoteKey("A", "B", big.NewInt(1250000000)))
	assert.Equal(t, "quote:A:B:1250e6", QuoteKey("A", "B", big.NewInt(1250999999)))
	assert.NotEqual(t, QuoteKey("A", "B", big.NewInt(1250000000)), QuoteKey("A", "B", big.NewInt(1251000000)))
	assert.NotEqual(t, QuoteKey("A", "B", big.NewInt(1250000000)), QuoteKey("A", "B", big.NewInt(125000000)))
}

func TestAmountBucket(t *testing.T) {
	tests := map[string]string{
		"0":                    "0",
		"7":                    "7",
		"9999":                 "9999",
		"10000":                "1000e1",
		"123456789":            "1234e5",
		"18446744073709551615": "1844e16",
	}
	for in, want := range tests {
		n, _ := new(big.Int).SetString(in, 10)
		assert.Equal(t, want, AmountBucket(n), in)
	}
	assert.Equal(t, "0", AmountBucket(nil))
}

func TestMemoryBackend_CopiesInput(t *testing.T) {
	m := NewMemoryBackend()
	data := []byte("abc")
	require.NoError(t, m.Store(context.Background(), "k", data))
	data[0] = 'z'

	got, ok, err := m.Load(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, m.Len())
}
