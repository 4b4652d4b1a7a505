package jupiter

import (
	"fmt"
	"strconv"
	"strings"
)

type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string // raw integer as string (uint64)

	SlippageBps *uint16
	SwapMode    string // ExactIn | ExactOut

	RestrictIntermediateTokens *bool
	OnlyDirectRoutes           *bool
}

type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PlatformFee          *PlatformFee    `json:"platformFee,omitempty"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`

	ContextSlot uint64  `json:"contextSlot,omitempty"`
	TimeTaken   float64 `json:"timeTaken,omitempty"`
}

// Validate rejects payloads that lack the fields a quote is built from.
func (q *QuoteResponse) Validate() error {
	if strings.TrimSpace(q.InputMint) == "" || strings.TrimSpace(q.OutputMint) == "" {
		return fmt.Errorf("jupiter quote missing mints")
	}
	if _, err := strconv.ParseUint(q.InAmount, 10, 64); err != nil {
		return fmt.Errorf("jupiter quote has invalid inAmount %q", q.InAmount)
	}
	if _, err := strconv.ParseUint(q.OutAmount, 10, 64); err != nil {
		return fmt.Errorf("jupiter quote has invalid outAmount %q", q.OutAmount)
	}
	if q.PriceImpactPct != "" {
		if _, err := strconv.ParseFloat(q.PriceImpactPct, 64); err != nil {
			return fmt.Errorf("jupiter quote has invalid priceImpactPct %q", q.PriceImpactPct)
		}
	}
	return nil
}

// RouteLabel returns the label of the first route hop, if any.
func (q *QuoteResponse) RouteLabel() string {
	if len(q.RoutePlan) == 0 || q.RoutePlan[0].SwapInfo.Label == "" {
		return "Jupiter"
	}
	return q.RoutePlan[0].SwapInfo.Label
}

type PlatformFee struct {
	Amount string `json:"amount,omitempty"`
	FeeBps uint16 `json:"feeBps,omitempty"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  *uint8   `json:"percent,omitempty"`
	Bps      uint16   `json:"bps"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`

	FeeAmount *string `json:"feeAmount,omitempty"`
	FeeMint   *string `json:"feeMint,omitempty"`
}

type SwapRequest struct {
	QuoteResponse    *QuoteResponse `json:"quoteResponse"`
	UserPublicKey    string         `json:"userPublicKey"`
	WrapAndUnwrapSol bool           `json:"wrapAndUnwrapSol"`

	DynamicComputeUnitLimit bool `json:"dynamicComputeUnitLimit,omitempty"`
}

type SwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"` // base64, unsigned
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports,omitempty"`
}
