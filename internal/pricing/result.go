// Package pricing resolves prices and quotes through an ordered chain of upstream
// providers, falling through to the next provider on failure or timeout.
package pricing

import (
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

// Success is the value returned by the first provider that answered.
type Success[T any] struct {
	Value    T
	Provider string
}

// Failure describes why a single provider did not produce a value.
type Failure struct {
	Provider  string
	Reason    string
	IsTimeout bool
}

// Code classifies the failure for callers.
func (f Failure) Code() apperror.Code {
	if f.IsTimeout {
		return apperror.CodeUpstreamTimeout
	}
	return apperror.CodeUpstreamFailure
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Provider, f.Reason)
}

// Result is exactly one of Success or Failure.
type Result[T any] struct {
	ok      bool
	success Success[T]
	failure Failure
}

func Succeeded[T any](provider string, value T) Result[T] {
	return Result[T]{ok: true, success: Success[T]{Value: value, Provider: provider}}
}

func Failed[T any](f Failure) Result[T] {
	return Result[T]{failure: f}
}

func (r Result[T]) OK() bool { return r.ok }

func (r Result[T]) Success() (Success[T], bool) {
	return r.success, r.ok
}

func (r Result[T]) Failure() (Failure, bool) {
	return r.failure, !r.ok
}

// Resolution is the outcome of a successful chain run, with the failures of the
// providers tried before the one that answered.
type Resolution[T any] struct {
	Success[T]
	Failures []Failure
}

// ChainError is returned when every provider in a chain failed.
type ChainError struct {
	Chain    string
	Failures []Failure
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s: all sources exhausted (%s)", e.Chain, strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() error {
	return apperror.New(apperror.CodeAllSourcesExhausted, apperror.WithContext(e.Chain))
}

// TimedOut reports whether every failure was a timeout.
func (e *ChainError) TimedOut() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if !f.IsTimeout {
			return false
		}
	}
	return true
}
