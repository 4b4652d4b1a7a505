package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/metrics"
)

type countingProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context) (int, error)
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Fetch(ctx context.Context, _ string) (int, error) {
	p.calls.Add(1)
	return p.fn(ctx)
}

func ok(name string, v int) *countingProvider {
	return &countingProvider{name: name, fn: func(context.Context) (int, error) { return v, nil }}
}

func failing(name string) *countingProvider {
	return &countingProvider{name: name, fn: func(context.Context) (int, error) { return 0, errors.New("boom") }}
}

func hanging(name string) *countingProvider {
	return &countingProvider{name: name, fn: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}
}

func steps(ps ...*countingProvider) []Step[string, int] {
	out := make([]Step[string, int], 0, len(ps))
	for _, p := range ps {
		out = append(out, Step[string, int]{Provider: p, Timeout: 50 * time.Millisecond})
	}
	return out
}

func TestChain_FirstSuccessShortCircuits(t *testing.T) {
	a, b := ok("a", 1), ok("b", 2)
	c := NewChain(ChainConfig{Name: "test"}, steps(a, b)...)

	res, err := c.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Value)
	assert.Equal(t, "a", res.Provider)
	assert.Empty(t, res.Failures)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestChain_FallsThroughOnFailure(t *testing.T) {
	a, b := failing("a"), ok("b", 2)
	c := NewChain(ChainConfig{Name: "test"}, steps(a, b)...)

	res, err := c.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a", res.Failures[0].Provider)
	assert.False(t, res.Failures[0].IsTimeout)
	assert.Equal(t, apperror.CodeUpstreamFailure, res.Failures[0].Code())
}

func TestChain_TimeoutIsFailure(t *testing.T) {
	a, b := hanging("a"), ok("b", 2)
	c := NewChain(ChainConfig{Name: "test"}, steps(a, b)...)

	res, err := c.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Value)
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Failures[0].IsTimeout)
	assert.Equal(t, apperror.CodeUpstreamTimeout, res.Failures[0].Code())
}

func TestChain_ProviderIgnoringContextIsCutOff(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := &countingProvider{name: "stuck", fn: func(context.Context) (int, error) {
		<-release
		return 9, nil
	}}
	c := NewChain(ChainConfig{Name: "test"}, steps(stuck, ok("b", 2))...)

	start := time.Now()
	res, err := c.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChain_AllFail(t *testing.T) {
	m := metrics.NewMetrics("test")
	c := NewChain(ChainConfig{Name: "quote", Metrics: m}, steps(failing("a"), hanging("b"), failing("c"))...)

	_, err := c.Resolve(context.Background(), "x")
	require.Error(t, err)

	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Failures, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ce.Failures[0].Provider, ce.Failures[1].Provider, ce.Failures[2].Provider})
	assert.True(t, ce.Failures[1].IsTimeout)
	assert.False(t, ce.TimedOut())
	assert.True(t, apperror.HasCode(err, apperror.CodeAllSourcesExhausted))
	assert.Contains(t, err.Error(), "all sources exhausted")
}

func TestChain_CancelledContextSkipsRemaining(t *testing.T) {
	b := ok("b", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewChain(ChainConfig{Name: "test"}, steps(b)...)
	_, err := c.Resolve(ctx, "x")

	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Contains(t, ce.Failures[0].Reason, "skipped")
}

func TestChain_Providers(t *testing.T) {
	c := NewChain(ChainConfig{}, steps(ok("jupiter", 1), ok("birdeye", 1))...)
	assert.Equal(t, []string{"jupiter", "birdeye"}, c.Providers())
	assert.Equal(t, "chain", c.Name())
}

func TestResult_IsExactlyOneVariant(t *testing.T) {
	s := Succeeded("a", 1)
	_, isFailure := s.Failure()
	assert.True(t, s.OK())
	assert.False(t, isFailure)

	f := Failed[int](Failure{Provider: "a", Reason: "x"})
	_, isSuccess := f.Success()
	assert.False(t, f.OK())
	assert.False(t, isSuccess)
}

func TestWithBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := failing("flaky")
	p := WithBreaker[string, int](inner, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := p.Fetch(context.Background(), "x")
		require.Error(t, err)
	}
	_, err := p.Fetch(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "flaky", p.Name())
}

func TestWithBreaker_ScopedNamesReportSeparately(t *testing.T) {
	m := metrics.NewMetrics("test")
	base := BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute, Metrics: m}

	quote := WithBreaker[string, int](failing("birdeye"), base.Scoped("quote"))
	stats := WithBreaker[string, int](ok("birdeye", 1), base.Scoped("stats"))

	_, err := quote.Fetch(context.Background(), "x")
	require.Error(t, err)
	_, err = stats.Fetch(context.Background(), "x")
	require.NoError(t, err)

	open := float64(gobreaker.StateOpen)
	assert.Equal(t, open, testutil.ToFloat64(m.BreakerState.WithLabelValues("quote.birdeye")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("stats.birdeye")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("birdeye")))
	assert.Equal(t, "birdeye", quote.Name())
}

type staticToggles map[string]bool

func (s staticToggles) ProviderDisabled(_ context.Context, provider string) bool {
	return s[provider]
}

func TestWithToggle(t *testing.T) {
	a := ok("a", 1)
	p := WithToggle[string, int](a, staticToggles{"a": true})

	_, err := p.Fetch(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderDisabled)
	assert.Equal(t, int32(0), a.calls.Load())

	same := WithToggle[string, int](a, nil)
	v, err := same.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestChain_DisabledProviderFallsThrough(t *testing.T) {
	toggles := staticToggles{"a": true}
	c := NewChain(ChainConfig{Name: "test"},
		Step[string, int]{Provider: WithToggle[string, int](ok("a", 1), toggles)},
		Step[string, int]{Provider: ok("b", 2)},
	)

	res, err := c.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	assert.Equal(t, ErrProviderDisabled.Error(), res.Failures[0].Reason)
}
