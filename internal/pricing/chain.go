package pricing

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
)

// Provider fetches one kind of value from a single upstream.
type Provider[Req, Res any] interface {
	Name() string
	Fetch(ctx context.Context, req Req) (Res, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc[Req, Res any] struct {
	ID string
	Fn func(ctx context.Context, req Req) (Res, error)
}

func (p ProviderFunc[Req, Res]) Name() string { return p.ID }

func (p ProviderFunc[Req, Res]) Fetch(ctx context.Context, req Req) (Res, error) {
	return p.Fn(ctx, req)
}

// Step is one provider with its time budget.
type Step[Req, Res any] struct {
	Provider Provider[Req, Res]
	Timeout  time.Duration
}

type ChainConfig struct {
	Name    string
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// Chain tries its steps in order and returns the first success.
type Chain[Req, Res any] struct {
	name    string
	steps   []Step[Req, Res]
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewChain[Req, Res any](cfg ChainConfig, steps ...Step[Req, Res]) *Chain[Req, Res] {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	name := cfg.Name
	if name == "" {
		name = "chain"
	}
	return &Chain[Req, Res]{
		name:    name,
		steps:   steps,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

func (c *Chain[Req, Res]) Name() string { return c.name }

// Providers returns the provider names in priority order.
func (c *Chain[Req, Res]) Providers() []string {
	out := make([]string, 0, len(c.steps))
	for _, s := range c.steps {
		out = append(out, s.Provider.Name())
	}
	return out
}

// Resolve runs the steps in order. The returned error is a *ChainError when every
// provider failed. If ctx ends, providers not yet tried are skipped.
func (c *Chain[Req, Res]) Resolve(ctx context.Context, req Req) (Resolution[Res], error) {
	var failures []Failure

	for _, step := range c.steps {
		if ctx.Err() != nil {
			failures = append(failures, Failure{
				Provider:  step.Provider.Name(),
				Reason:    "skipped: " + ctx.Err().Error(),
				IsTimeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
			})
			continue
		}

		res := c.attempt(ctx, step, req)
		if s, ok := res.Success(); ok {
			return Resolution[Res]{Success: s, Failures: failures}, nil
		}
		f, _ := res.Failure()
		failures = append(failures, f)
	}

	return Resolution[Res]{}, &ChainError{Chain: c.name, Failures: failures}
}

type fetchResult[Res any] struct {
	value Res
	err   error
}

func (c *Chain[Req, Res]) attempt(ctx context.Context, step Step[Req, Res], req Req) Result[Res] {
	name := step.Provider.Name()
	start := time.Now()

	callCtx := ctx
	cancel := func() {}
	if step.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, step.Timeout)
	}
	defer cancel()

	// Providers that ignore ctx are still cut off at the deadline.
	done := make(chan fetchResult[Res], 1)
	go func() {
		v, err := step.Provider.Fetch(callCtx, req)
		done <- fetchResult[Res]{value: v, err: err}
	}()

	var fr fetchResult[Res]
	select {
	case fr = <-done:
	case <-callCtx.Done():
		fr = fetchResult[Res]{err: callCtx.Err()}
	}
	took := time.Since(start)

	if fr.err == nil {
		c.metrics.ProviderResult(c.name, name, "success", took)
		return Succeeded(name, fr.value)
	}

	f := Failure{
		Provider:  name,
		Reason:    fr.err.Error(),
		IsTimeout: isTimeout(fr.err),
	}
	outcome := "failure"
	if f.IsTimeout {
		outcome = "timeout"
	}
	c.metrics.ProviderResult(c.name, name, outcome, took)

	c.logger.WithFields(logrus.Fields{
		"chain":    c.name,
		"provider": name,
		"code":     f.Code(),
		"took":     took,
	}).WithError(fr.err).Warn("provider failed, falling through")

	return Failed[Res](f)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
