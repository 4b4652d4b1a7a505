package swapengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/jupiter"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/storage"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

// Quoter resolves a quote through the provider chain.
type Quoter interface {
	Resolve(ctx context.Context, req pricing.QuoteRequest) (pricing.Resolution[pricing.QuotePayload], error)
}

// SwapClient builds unsigned swap transactions from aggregator quotes.
type SwapClient interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	Swap(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error)
}

// Engine holds everything shared between sessions. It is safe for concurrent use.
type Engine struct {
	catalog   *tokens.Catalog
	quoter    Quoter
	cache     *quotecache.Cache[models.Quote]
	swaps     SwapClient
	journal   storage.QuoteJournal
	publisher storage.EventPublisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	referencePrices map[string]decimal.Decimal
	quoteTTL        time.Duration
	coalesceWindow  time.Duration
	defaultSlippage decimal.Decimal
	now             func() time.Time
}

// EngineConfig holds configuration for the quote engine
type EngineConfig struct {
	Catalog *tokens.Catalog
	Quoter  Quoter
	Cache   *quotecache.Cache[models.Quote]

	// Optional collaborators
	Swaps     SwapClient
	Journal   storage.QuoteJournal
	Publisher storage.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger

	// Reference USD prices by symbol for estimated quotes
	ReferencePrices map[string]decimal.Decimal
	QuoteTTL        time.Duration
	CoalesceWindow  time.Duration
	DefaultSlippage decimal.Decimal

	Now func() time.Time
}

// NewEngine creates a new quote engine
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("swapengine: catalog is required")
	}
	if cfg.Quoter == nil {
		return nil, fmt.Errorf("swapengine: quoter is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = quotecache.New[models.Quote](quotecache.NewMemoryBackend(), quotecache.WithLogger(cfg.Logger))
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = quotecache.TTLQuote
	}
	if cfg.CoalesceWindow < 0 {
		cfg.CoalesceWindow = 0
	}
	if cfg.DefaultSlippage.IsZero() {
		cfg.DefaultSlippage = decimal.RequireFromString(constants.DefaultSlippagePct)
	}
	if err := ValidateSlippage(cfg.DefaultSlippage); err != nil {
		return nil, fmt.Errorf("swapengine: default slippage: %w", err)
	}
	if cfg.Journal == nil {
		cfg.Journal = storage.Nop{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = storage.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	refs := make(map[string]decimal.Decimal, len(cfg.ReferencePrices))
	for sym, p := range cfg.ReferencePrices {
		refs[strings.ToUpper(sym)] = p
	}

	return &Engine{
		catalog:         cfg.Catalog,
		quoter:          cfg.Quoter,
		cache:           cfg.Cache,
		swaps:           cfg.Swaps,
		journal:         cfg.Journal,
		publisher:       cfg.Publisher,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		referencePrices: refs,
		quoteTTL:        cfg.QuoteTTL,
		coalesceWindow:  cfg.CoalesceWindow,
		defaultSlippage: cfg.DefaultSlippage,
		now:             cfg.Now,
	}, nil
}

// Tokens returns every supported token in catalog order.
func (e *Engine) Tokens() []tokens.Record {
	return e.catalog.All()
}

// NewSession starts a caller session with the default slippage.
func (e *Engine) NewSession(id string) *Session {
	return &Session{
		id:       id,
		engine:   e,
		slippage: e.defaultSlippage,
		throttle: quotecache.NewThrottle(e.coalesceWindow).WithClock(e.now),
	}
}

// fetch resolves a quote for a validated intent, falling back to a stale cache
// entry and then to an estimate. It never returns an error.
func (e *Engine) fetch(ctx context.Context, it intent, slippage decimal.Decimal) Outcome {
	key := quotecache.QuoteKey(it.in.Mint, it.out.Mint, it.amount)
	log := e.logger.WithFields(logrus.Fields{
		"pair":   it.in.Symbol + "/" + it.out.Symbol,
		"amount": it.amount.String(),
	})

	res, err := e.quoter.Resolve(ctx, pricing.QuoteRequest{
		Input:       it.in,
		Output:      it.out,
		Amount:      it.amount,
		SlippageBps: slippageBps(slippage),
	})
	if err == nil {
		q := models.Quote{
			InputToken:     it.in.Symbol,
			OutputToken:    it.out.Symbol,
			InputMint:      it.in.Mint,
			OutputMint:     it.out.Mint,
			InAmount:       it.amount.String(),
			OutAmount:      res.Value.OutAmount.String(),
			PriceImpactPct: res.Value.PriceImpactPct,
			SourceLabel:    res.Value.Label,
			Source:         models.SourceLive,
			FetchedAt:      e.now(),
		}
		q = withSlippage(q, slippage)

		if err := e.cache.Put(ctx, key, q, e.quoteTTL); err != nil {
			log.WithError(err).Warn("failed to cache quote")
		}
		e.record(ctx, q)

		out := e.outcome(q)
		out.Failures = res.Failures
		return out
	}

	var failures []pricing.Failure
	if ce, ok := err.(*pricing.ChainError); ok {
		failures = ce.Failures
	}
	log.WithError(err).Warn("all quote sources failed, serving fallback")

	if entry, ok := e.cache.GetStaleOrMiss(ctx, key); ok {
		q := scaleTo(entry.Value, it.amount)
		q.Source = models.SourceStale
		q = withSlippage(q, slippage)
		e.metrics.QuoteServed(string(q.Source))

		out := e.outcome(q)
		out.Failures = failures
		return out
	}

	q := e.estimate(it, slippage)
	e.metrics.QuoteServed(string(q.Source))
	out := e.outcome(q)
	out.Failures = failures
	return out
}

// record journals and publishes a live quote. Failures are logged only.
func (e *Engine) record(ctx context.Context, q models.Quote) {
	e.metrics.QuoteServed(string(q.Source))

	if err := e.journal.InsertQuote(ctx, q); err != nil {
		e.logger.WithError(err).Warn("failed to journal quote")
	}
	if err := e.publisher.PublishQuote(ctx, q); err != nil {
		e.logger.WithError(err).Warn("failed to publish quote")
	}
}

// fromCache returns a fresh cached quote for the intent, if any.
func (e *Engine) fromCache(ctx context.Context, it intent, slippage decimal.Decimal) (Outcome, bool) {
	entry, ok := e.cache.Get(ctx, quotecache.QuoteKey(it.in.Mint, it.out.Mint, it.amount))
	if !ok {
		return Outcome{}, false
	}
	q := withSlippage(scaleTo(entry.Value, it.amount), slippage)
	e.metrics.QuoteServed(string(q.Source))
	return e.outcome(q), true
}
