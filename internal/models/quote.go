package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags how trustworthy a quote or snapshot is.
type Source string

const (
	SourceLive      Source = "live"      // fresh upstream data
	SourceStale     Source = "stale"     // expired cache entry served while upstreams fail
	SourceEstimated Source = "estimated" // synthetic, computed from reference prices
	SourceDefault   Source = "default"   // configured defaults, nothing fetched yet
)

// Quote is an immutable swap quote. Amounts are integer base units encoded as
// decimal strings, matching the aggregator wire format.
type Quote struct {
	InputToken     string          `json:"inputToken"`
	OutputToken    string          `json:"outputToken"`
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	MinimumOut     string          `json:"minimumOutAmount"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`
	SlippagePct    decimal.Decimal `json:"slippagePct"`
	SourceLabel    string          `json:"sourceLabel"`
	Source         Source          `json:"source"`
	FetchedAt      time.Time       `json:"fetchedAt"`
}

// In returns the input amount in base units.
func (q Quote) In() *big.Int { return parseBig(q.InAmount) }

// Out returns the output amount in base units.
func (q Quote) Out() *big.Int { return parseBig(q.OutAmount) }

// MinOut returns the slippage-adjusted minimum output in base units.
func (q Quote) MinOut() *big.Int { return parseBig(q.MinimumOut) }

// IsZero reports whether the quote carries no output.
func (q Quote) IsZero() bool { return q.Out().Sign() == 0 }

func parseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// MarketSnapshot aggregates spot price and liquidity statistics for the base token.
type MarketSnapshot struct {
	Price     decimal.Decimal `json:"price"`
	TVL       decimal.Decimal `json:"tvl"`
	Volume24h decimal.Decimal `json:"volume24h"`
	Trades24h int64           `json:"trades24h"`
	Liquidity decimal.Decimal `json:"liquidity"`
	Source    Source          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
