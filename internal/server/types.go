package server

import (
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/activity"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/stream"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/synthetic"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Reason  string `json:"reason,omitempty"`  // Machine-readable error code, e.g. INVALID_AMOUNT
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK         bool            `json:"ok"`
	Components map[string]bool `json:"components,omitempty"`
}

// TokensResponse lists the supported tokens in catalog order
type TokensResponse struct {
	Items any `json:"items"`
}

// QuoteResponse is a quote with its display values for one session
type QuoteResponse struct {
	Session string `json:"session"`
	swapengine.Outcome
	IsEstimated bool `json:"estimated"`
}

// SlippageRequest sets the session's tolerance in percent
type SlippageRequest struct {
	Value *decimal.Decimal `json:"value"`
}

// SlippageResponse reports the session's tolerance and repriced current quote
type SlippageResponse struct {
	Session string              `json:"session"`
	Value   decimal.Decimal     `json:"value"`
	Current *swapengine.Outcome `json:"current,omitempty"`
}

// MarketResponse wraps the market snapshot
type MarketResponse struct {
	models.MarketSnapshot
	Refreshing bool `json:"refreshing,omitempty"`
}

// OrderBookResponse is a synthetic book plus the largest amount per side for depth bars
type OrderBookResponse struct {
	synthetic.OrderBook
	MaxAskAmount decimal.Decimal `json:"maxAskAmount"`
	MaxBidAmount decimal.Decimal `json:"maxBidAmount"`
}

// WalletConnectResponse carries the connected wallet address
type WalletConnectResponse struct {
	Address string `json:"address"`
}

// WalletBalanceResponse is the native balance of the connected wallet
type WalletBalanceResponse struct {
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}

// ProviderStatus is one upstream provider and its kill-switch state
type ProviderStatus struct {
	Name     string `json:"name"`
	Disabled bool   `json:"disabled"`
}

// ProviderToggleRequest switches a provider off or back on
type ProviderToggleRequest struct {
	Disabled bool `json:"disabled"`
}

// ActivityResponse wraps a token's recent swap activity
type ActivityResponse struct {
	activity.Report
}

// PriceResponse is the realtime feed's last trade
type PriceResponse struct {
	Symbol string `json:"symbol"`
	stream.Trade
	Connected bool `json:"connected"`
}
