// Package quotecache memoizes upstream results with per-entry TTLs. Expired entries
// are kept so degraded callers can still serve them with their age attached.
package quotecache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
)

// TTL defaults per data class
const (
	TTLQuote    = 10 * time.Second
	TTLMarket   = 5 * time.Minute
	TTLPrices   = time.Minute
	TTLActivity = time.Minute
)

// MarketKey is the single entry holding the aggregate market snapshot.
const MarketKey = "market"

// ActivityKey identifies the swap activity report of a mint.
func ActivityKey(mint string) string {
	return "activity:" + mint
}

// BucketDigits is the number of significant digits an amount keeps in its cache bucket.
const BucketDigits = 4

// QuoteKey identifies a quote by pair and amount bucket. With amounts capped at
// u64 a pair has at most a few hundred thousand buckets.
func QuoteKey(inputMint, outputMint string, amount *big.Int) string {
	return fmt.Sprintf("quote:%s:%s:%s", inputMint, outputMint, AmountBucket(amount))
}

// AmountBucket truncates amount to BucketDigits significant digits and writes it
// as mantissa and power of ten, e.g. 1250000000 -> "1250e6". Small amounts are exact.
func AmountBucket(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	digits := amount.String()
	if len(digits) <= BucketDigits {
		return digits
	}
	return fmt.Sprintf("%se%d", digits[:BucketDigits], len(digits)-BucketDigits)
}

// Backend persists serialized entries. Implementations must not expire data on their own.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, data []byte) error
}

// Entry is a cached value with its fetch time. Age is filled on reads.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	TTL       time.Duration
	Age       time.Duration
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

type record struct {
	Value     json.RawMessage `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
	TTLMs     int64           `json:"ttl_ms"`
}

// Observer is notified of every read outcome.
type Observer interface {
	CacheResult(name string, hit bool)
}

type options struct {
	now      func() time.Time
	logger   *logrus.Logger
	observer Observer
	name     string
}

// Option configures a Cache.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for backend failures.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports hits and misses under name.
func WithObserver(name string, obs Observer) Option {
	return func(o *options) {
		o.name = name
		o.observer = obs
	}
}

// Cache is a typed view over a Backend.
type Cache[T any] struct {
	backend Backend
	opts    options
}

// New creates a cache storing T values as JSON in backend.
func New[T any](backend Backend, opts ...Option) *Cache[T] {
	o := options{now: time.Now, name: "cache"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	return &Cache[T]{backend: backend, opts: o}
}

// Get returns a fresh entry, or false on miss or expiry.
func (c *Cache[T]) Get(ctx context.Context, key string) (Entry[T], bool) {
	e, ok := c.load(ctx, key)
	hit := ok && e.Fresh(c.opts.now())
	c.observe(hit)
	if !hit {
		return Entry[T]{}, false
	}
	return e, true
}

// GetStaleOrMiss returns the entry regardless of expiry, annotated with its age.
func (c *Cache[T]) GetStaleOrMiss(ctx context.Context, key string) (Entry[T], bool) {
	return c.load(ctx, key)
}

// Put overwrites the entry for key.
func (c *Cache[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	data, err := json.Marshal(record{Value: raw, FetchedAt: c.opts.now(), TTLMs: ttl.Milliseconds()})
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	if err := c.backend.Store(ctx, key, data); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (c *Cache[T]) load(ctx context.Context, key string) (Entry[T], bool) {
	data, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		c.opts.logger.WithError(err).WithField("key", key).Warn("cache backend read failed, treating as miss")
		return Entry[T]{}, false
	}
	if !ok {
		return Entry[T]{}, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.opts.logger.WithError(err).WithField("key", key).Warn("corrupt cache record")
		return Entry[T]{}, false
	}
	var v T
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		c.opts.logger.WithError(err).WithField("key", key).Warn("corrupt cache value")
		return Entry[T]{}, false
	}

	return Entry[T]{
		Value:     v,
		FetchedAt: rec.FetchedAt,
		TTL:       time.Duration(rec.TTLMs) * time.Millisecond,
		Age:       c.opts.now().Sub(rec.FetchedAt),
	}, true
}

func (c *Cache[T]) observe(hit bool) {
	if c.opts.observer != nil {
		c.opts.observer.CacheResult(c.opts.name, hit)
	}
}
