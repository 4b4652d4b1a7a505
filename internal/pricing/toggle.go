package pricing

import (
	"context"
	"errors"
)

// ErrProviderDisabled is returned by a provider switched off by an operator.
var ErrProviderDisabled = errors.New("provider disabled")

// Toggles reports whether a provider has been switched off.
type Toggles interface {
	ProviderDisabled(ctx context.Context, provider string) bool
}

type toggledProvider[Req, Res any] struct {
	inner   Provider[Req, Res]
	toggles Toggles
}

// WithToggle makes p fail immediately while toggles reports it disabled.
func WithToggle[Req, Res any](p Provider[Req, Res], toggles Toggles) Provider[Req, Res] {
	if toggles == nil {
		return p
	}
	return &toggledProvider[Req, Res]{inner: p, toggles: toggles}
}

func (t *toggledProvider[Req, Res]) Name() string { return t.inner.Name() }

func (t *toggledProvider[Req, Res]) Fetch(ctx context.Context, req Req) (Res, error) {
	if t.toggles.ProviderDisabled(ctx, t.inner.Name()) {
		var zero Res
		return zero, ErrProviderDisabled
	}
	return t.inner.Fetch(ctx, req)
}
