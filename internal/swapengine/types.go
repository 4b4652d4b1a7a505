package swapengine

import (
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
)

// QuoteInput is one quote request as entered by the caller.
type QuoteInput struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"` // human units of From

	// Optional. When set, the amount may not exceed it (human units of From).
	Balance *decimal.Decimal `json:"balance,omitempty"`
	// Optional per-request tolerance; the session's slippage is used when nil.
	SlippagePct *decimal.Decimal `json:"slippagePct,omitempty"`
}

// Outcome is a quote together with the display values derived from it.
type Outcome struct {
	Quote models.Quote `json:"quote"`

	EstimatedOutput string          `json:"estimatedOutput"` // human units, 4 places
	MinimumReceived string          `json:"minimumReceived"` // human units, 4 places
	PriceImpact     decimal.Decimal `json:"priceImpact"`

	// Coalesced is set when the request fell inside the coalescing window and the
	// previous state was returned without an upstream call.
	Coalesced bool `json:"coalesced,omitempty"`
	// Superseded is set when a newer request was issued while this one was in
	// flight; the result was not made current.
	Superseded bool `json:"superseded,omitempty"`

	// Providers that failed while resolving a live or fallback quote.
	Failures []pricing.Failure `json:"failures,omitempty"`
}

// Estimated reports whether the quote is not fresh upstream data.
func (o Outcome) Estimated() bool {
	return o.Quote.Source != models.SourceLive
}

// SignedSwap is a swap transaction signed by the wallet, ready to be broadcast by
// the caller.
type SignedSwap struct {
	Quote                models.Quote `json:"quote"`
	Owner                string       `json:"owner"`
	SignedTransaction    string       `json:"signedTransaction"` // base64
	LastValidBlockHeight uint64       `json:"lastValidBlockHeight"`
}
