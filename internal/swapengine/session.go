package swapengine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
)

const quoteClass = "quote"

// Session is one caller's quoting state: slippage tolerance and current quote.
// Overlapping requests are ordered by a sequence number; a response that
// completes after a newer request was issued is returned but not made current.
type Session struct {
	id       string
	engine   *Engine
	throttle *quotecache.Throttle

	mu       sync.Mutex
	slippage decimal.Decimal
	current  Outcome
	hasQuote bool
	seq      uint64
	lastUsed time.Time
}

func (s *Session) ID() string { return s.id }

// Slippage returns the current tolerance in percent.
func (s *Session) Slippage() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slippage
}

// UpdateSlippage sets the tolerance. Out-of-range values are rejected and leave
// the stored value unchanged.
func (s *Session) UpdateSlippage(pct decimal.Decimal) error {
	if err := ValidateSlippage(pct); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slippage = pct
	if s.hasQuote {
		s.current = s.engine.reprice(s.current, pct)
	}
	return nil
}

// Current returns the last quote made current, if any.
func (s *Session) Current() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasQuote
}

// RequestQuote validates input and returns a quote. Validation failures return
// an *apperror.AppError and leave the session untouched. Upstream failures are
// absorbed: the result is then a stale or estimated quote.
func (s *Session) RequestQuote(ctx context.Context, input QuoteInput) (Outcome, error) {
	e := s.engine

	it, err := e.validate(input)
	if err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	slippage := s.slippage
	s.mu.Unlock()
	if input.SlippagePct != nil {
		if err := ValidateSlippage(*input.SlippagePct); err != nil {
			return Outcome{}, err
		}
		slippage = *input.SlippagePct
	}

	if it.zero {
		from, to := strings.ToUpper(input.From), strings.ToUpper(input.To)
		out := e.outcome(zeroQuote(it.in, it.out, from, to, slippage))
		seq := s.issue()
		return s.apply(seq, out), nil
	}

	if out, ok := e.fromCache(ctx, it, slippage); ok {
		seq := s.issue()
		return s.apply(seq, out), nil
	}

	if !s.throttle.Allow(quoteClass) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := s.current
		if !s.hasQuote || out.Quote.InputMint != it.in.Mint || out.Quote.OutputMint != it.out.Mint {
			// Last state is for another pair; answer neutrally rather than with it.
			out = e.outcome(zeroQuote(it.in, it.out, it.in.Symbol, it.out.Symbol, slippage))
		}
		out.Coalesced = true
		return out, nil
	}

	seq := s.issue()
	out := e.fetch(ctx, it, slippage)
	return s.apply(seq, out), nil
}

func (s *Session) issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.lastUsed = s.engine.now()
	return s.seq
}

// apply makes out current unless a newer request has been issued since seq.
func (s *Session) apply(seq uint64, out Outcome) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.seq {
		out.Superseded = true
		return out
	}
	s.current = out
	s.hasQuote = true
	return out
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// reprice recomputes slippage-dependent fields of an outcome.
func (e *Engine) reprice(o Outcome, pct decimal.Decimal) Outcome {
	next := e.outcome(withSlippage(o.Quote, pct))
	next.Failures = o.Failures
	return next
}
