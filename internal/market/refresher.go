// Package market keeps the aggregate market snapshot for the base token fresh.
package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

// SpotResolver resolves the USD spot price of a token.
type SpotResolver interface {
	Resolve(ctx context.Context, token tokens.Record) (pricing.Resolution[decimal.Decimal], error)
}

// StatsResolver resolves liquidity and volume statistics of a token.
type StatsResolver interface {
	Resolve(ctx context.Context, token tokens.Record) (pricing.Resolution[pricing.Stats], error)
}

// Defaults are served for any field no source or previous snapshot can fill.
type Defaults struct {
	Price     decimal.Decimal
	TVL       decimal.Decimal
	Volume24h decimal.Decimal
	Trades24h int64
}

// Config holds configuration for the refresher
type Config struct {
	Token tokens.Record
	Spot  SpotResolver
	Stats StatsResolver
	Cache *quotecache.Cache[models.MarketSnapshot]

	Publisher storage.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger

	Defaults Defaults
	TTL      time.Duration
	Now      func() time.Time
}

// Refresher owns the market snapshot. At most one refresh runs at a time; callers
// arriving while one is in flight get the current snapshot instead of waiting.
type Refresher struct {
	token     tokens.Record
	spot      SpotResolver
	stats     StatsResolver
	cache     *quotecache.Cache[models.MarketSnapshot]
	publisher storage.EventPublisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	defaults  Defaults
	ttl       time.Duration
	now       func() time.Time

	running atomic.Bool

	mu       sync.RWMutex
	current  models.MarketSnapshot
	previous bool // current holds fetched data, not defaults
}

// NewRefresher creates a refresher seeded from the cache, or from defaults.
func NewRefresher(ctx context.Context, cfg Config) (*Refresher, error) {
	if cfg.Spot == nil || cfg.Stats == nil {
		return nil, errors.New("market: spot and stats resolvers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = quotecache.New[models.MarketSnapshot](quotecache.NewMemoryBackend(), quotecache.WithLogger(cfg.Logger))
	}
	if cfg.Publisher == nil {
		cfg.Publisher = storage.Nop{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = quotecache.TTLMarket
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Refresher{
		token:     cfg.Token,
		spot:      cfg.Spot,
		stats:     cfg.Stats,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		defaults:  cfg.Defaults,
		ttl:       cfg.TTL,
		now:       cfg.Now,
	}

	r.current = r.defaultSnapshot()
	if entry, ok := r.cache.GetStaleOrMiss(ctx, quotecache.MarketKey); ok {
		r.current = entry.Value
		r.previous = entry.Value.Source != models.SourceDefault
	}
	return r, nil
}

// Snapshot returns the current snapshot without fetching.
func (r *Refresher) Snapshot() models.MarketSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh returns the cached snapshot while it is fresh and fetches otherwise.
func (r *Refresher) Refresh(ctx context.Context) models.MarketSnapshot {
	if entry, ok := r.cache.Get(ctx, quotecache.MarketKey); ok {
		r.metrics.RefreshResult("cached")
		return entry.Value
	}
	return r.ForceRefresh(ctx)
}

// ForceRefresh fetches regardless of the TTL, unless a refresh is already running.
func (r *Refresher) ForceRefresh(ctx context.Context) models.MarketSnapshot {
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.RefreshResult("skipped")
		return r.Snapshot()
	}
	defer r.running.Store(false)

	start := r.now()
	prev, hadPrevious := r.state()
	next := models.MarketSnapshot{FetchedAt: r.now()}
	log := r.logger.WithField("token", r.token.Symbol)

	var live int
	res, err := r.spot.Resolve(ctx, r.token)
	switch {
	case err == nil:
		next.Price = res.Value
		next.Source = models.SourceLive
		live++
		log = log.WithField("price_source", res.Provider)
	case hadPrevious:
		next.Price = prev.Price
		log.WithError(err).Warn("spot price unavailable, keeping previous")
	default:
		next.Price = r.defaults.Price
		log.WithError(err).Warn("spot price unavailable, using default")
	}

	stats, err := r.stats.Resolve(ctx, r.token)
	if err != nil {
		log.WithError(err).Warn("market stats unavailable")
	} else {
		live++
	}
	fill := func(v *decimal.Decimal, prevVal, def decimal.Decimal) *decimal.Decimal {
		switch {
		case v != nil && v.IsPositive():
			return v
		case hadPrevious:
			return &prevVal
		default:
			return &def
		}
	}
	next.TVL = *fill(stats.Value.Liquidity, prev.TVL, r.defaults.TVL)
	next.Liquidity = next.TVL
	next.Volume24h = *fill(stats.Value.Volume24h, prev.Volume24h, r.defaults.Volume24h)
	switch {
	case stats.Value.Trades24h != nil && *stats.Value.Trades24h > 0:
		next.Trades24h = *stats.Value.Trades24h
	case hadPrevious:
		next.Trades24h = prev.Trades24h
	default:
		next.Trades24h = r.defaults.Trades24h
	}

	if next.Source == "" {
		if hadPrevious {
			next.Source = models.SourceStale
		} else {
			next.Source = models.SourceDefault
		}
	}

	switch live {
	case 2:
		r.metrics.RefreshResult("ok")
	case 1:
		r.metrics.RefreshResult("partial")
	default:
		r.metrics.RefreshResult("failed")
	}

	r.mu.Lock()
	r.current = next
	r.previous = r.previous || live > 0
	r.mu.Unlock()

	if live > 0 {
		if err := r.cache.Put(ctx, quotecache.MarketKey, next, r.ttl); err != nil {
			log.WithError(err).Warn("failed to cache market snapshot")
		}
		if err := r.publisher.PublishMarket(ctx, next); err != nil {
			log.WithError(err).Warn("failed to publish market snapshot")
		}
	}

	log.WithFields(logrus.Fields{
		"price":  next.Price.String(),
		"source": next.Source,
		"took":   r.now().Sub(start),
	}).Info("market snapshot refreshed")
	return next
}

// Run refreshes immediately and then every interval until ctx is done. Ticks that
// arrive while a refresh is running are skipped.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl
	}
	r.logger.WithField("interval", interval).Info("market refresher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.ForceRefresh(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("market refresher stopped")
			return
		case <-ticker.C:
			r.ForceRefresh(ctx)
		}
	}
}

func (r *Refresher) state() (models.MarketSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.previous
}

func (r *Refresher) defaultSnapshot() models.MarketSnapshot {
	return models.MarketSnapshot{
		Price:     r.defaults.Price,
		TVL:       r.defaults.TVL,
		Volume24h: r.defaults.Volume24h,
		Trades24h: r.defaults.Trades24h,
		Liquidity: r.defaults.TVL,
		Source:    models.SourceDefault,
		FetchedAt: r.now(),
	}
}
