package swapengine

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/units"
)

const estimatedLabel = "Estimated"

// Synthetic price impact grows with trade size, in human input units.
var impactTiers = []struct {
	above  decimal.Decimal
	impact decimal.Decimal
}{
	{decimal.NewFromInt(10), decimal.RequireFromString("2.4")},
	{decimal.NewFromInt(5), decimal.RequireFromString("0.8")},
}

var baseImpact = decimal.RequireFromString("0.1")

// SyntheticImpact returns the estimated price impact for a trade of human size.
func SyntheticImpact(human decimal.Decimal) decimal.Decimal {
	for _, t := range impactTiers {
		if human.GreaterThan(t.above) {
			return t.impact
		}
	}
	return baseImpact
}

// estimate builds a quote from reference prices. It is never cached.
func (e *Engine) estimate(it intent, slippage decimal.Decimal) models.Quote {
	out, err := pricing.DeriveOut(it.amount, it.in, it.out, e.referencePrices[it.in.Symbol], e.referencePrices[it.out.Symbol])
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"code": apperror.GetCode(err),
			"pair": it.in.Symbol + "/" + it.out.Symbol,
		}).WithError(err).Warn("cannot estimate from reference prices, serving zero output")
		out = new(big.Int)
	}

	q := models.Quote{
		InputToken:     it.in.Symbol,
		OutputToken:    it.out.Symbol,
		InputMint:      it.in.Mint,
		OutputMint:     it.out.Mint,
		InAmount:       it.amount.String(),
		OutAmount:      out.String(),
		PriceImpactPct: SyntheticImpact(it.human),
		SourceLabel:    estimatedLabel,
		Source:         models.SourceEstimated,
		FetchedAt:      e.now(),
	}
	return withSlippage(q, slippage)
}

// withSlippage recomputes the minimum output for a tolerance.
func withSlippage(q models.Quote, pct decimal.Decimal) models.Quote {
	q.SlippagePct = pct
	q.MinimumOut = units.ApplySlippage(q.Out(), pct).String()
	return q
}

// scaleTo rescales a quote cached for another amount in the same bucket to
// amount, keeping its rate. Output rounds down.
func scaleTo(q models.Quote, amount *big.Int) models.Quote {
	in := q.In()
	if in.Sign() == 0 || in.Cmp(amount) == 0 {
		return q
	}
	out := new(big.Int).Mul(q.Out(), amount)
	out.Quo(out, in)
	q.InAmount = amount.String()
	q.OutAmount = out.String()
	return q
}

// zeroQuote is the neutral quote for an empty or zero amount.
func zeroQuote(in, out tokens.Record, from, to string, slippage decimal.Decimal) models.Quote {
	q := models.Quote{
		InputToken:  in.Symbol,
		OutputToken: out.Symbol,
		InputMint:   in.Mint,
		OutputMint:  out.Mint,
		InAmount:    "0",
		OutAmount:   "0",
		MinimumOut:  "0",
		SlippagePct: slippage,
		Source:      models.SourceDefault,
	}
	if q.InputToken == "" {
		q.InputToken = from
	}
	if q.OutputToken == "" {
		q.OutputToken = to
	}
	return q
}

// outcome derives the display values for q. An output token missing from the
// catalog renders with 0 decimals.
func (e *Engine) outcome(q models.Quote) Outcome {
	decimals := e.catalog.DecimalsOf(q.OutputToken)
	est, err := units.ToHumanAmount(q.Out(), decimals)
	if err != nil {
		est = decimal.Zero
	}
	minOut, err := units.ToHumanAmount(q.MinOut(), decimals)
	if err != nil {
		minOut = decimal.Zero
	}
	return Outcome{
		Quote:           q,
		EstimatedOutput: units.Format(est, 4),
		MinimumReceived: units.Format(minOut, 4),
		PriceImpact:     q.PriceImpactPct,
	}
}
