package pricing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
)

// BreakerConfig controls the per-provider circuit breaker.
type BreakerConfig struct {
	// Scope qualifies the breaker name, so one provider serving several chains
	// reports a separate state per chain ("quote.birdeye", "spot.birdeye").
	Scope string
	// Consecutive failures that open the breaker.
	MaxFailures uint32
	// How long the breaker stays open before a trial request.
	OpenTimeout time.Duration
	Logger      *logrus.Logger
	Metrics     *metrics.Metrics
}

type breakerProvider[Req, Res any] struct {
	inner Provider[Req, Res]
	cb    *gobreaker.CircuitBreaker[Res]
}

// Scoped returns a copy of cfg whose breakers are named under scope.
func (cfg BreakerConfig) Scoped(scope string) BreakerConfig {
	cfg.Scope = scope
	return cfg
}

// WithBreaker wraps p so that a run of failures short-circuits further calls until
// the open timeout elapses. An open breaker fails fast, which the chain treats like
// any other failure.
func WithBreaker[Req, Res any](p Provider[Req, Res], cfg BreakerConfig) Provider[Req, Res] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	name := p.Name()
	if cfg.Scope != "" {
		name = cfg.Scope + "." + name
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Metrics.SetBreakerState(name, int(to))
			logger.WithFields(logrus.Fields{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("provider circuit breaker state changed")
		},
	}

	return &breakerProvider[Req, Res]{
		inner: p,
		cb:    gobreaker.NewCircuitBreaker[Res](settings),
	}
}

func (b *breakerProvider[Req, Res]) Name() string { return b.inner.Name() }

func (b *breakerProvider[Req, Res]) Fetch(ctx context.Context, req Req) (Res, error) {
	return b.cb.Execute(func() (Res, error) {
		return b.inner.Fetch(ctx, req)
	})
}
