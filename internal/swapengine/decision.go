package swapengine

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/constants"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/units"
)

var (
	minSlippage = decimal.RequireFromString(constants.MinSlippagePct)
	maxSlippage = decimal.RequireFromString(constants.MaxSlippagePct)
)

// ValidateSlippage accepts tolerances in [0.1, 5.0] percent.
func ValidateSlippage(pct decimal.Decimal) error {
	if pct.LessThan(minSlippage) || pct.GreaterThan(maxSlippage) {
		return apperror.New(apperror.CodeInvalidSlippage, apperror.WithContext(pct.String()))
	}
	return nil
}

// intent is a validated quote request.
type intent struct {
	in     tokens.Record
	out    tokens.Record
	human  decimal.Decimal
	amount *big.Int // base units of in
	zero   bool
}

// validate checks input in order: empty or zero amount, malformed amount,
// unsupported tokens, identical tokens, balance. A zero amount is not an error.
func (e *Engine) validate(input QuoteInput) (intent, error) {
	raw := strings.TrimSpace(input.Amount)
	if raw == "" {
		return intent{zero: true}, nil
	}
	human, err := units.ParseAmount(raw)
	if err != nil {
		return intent{}, err
	}
	if human.IsZero() {
		return intent{zero: true}, nil
	}

	in, err := e.catalog.Lookup(strings.ToUpper(strings.TrimSpace(input.From)))
	if err != nil {
		return intent{}, apperror.New(apperror.CodeUnsupportedToken, apperror.WithContext(input.From))
	}
	out, err := e.catalog.Lookup(strings.ToUpper(strings.TrimSpace(input.To)))
	if err != nil {
		return intent{}, apperror.New(apperror.CodeUnsupportedToken, apperror.WithContext(input.To))
	}
	if in.Symbol == out.Symbol {
		return intent{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithMessage("input and output token must differ"), apperror.WithContext(in.Symbol))
	}

	if input.Balance != nil && human.GreaterThan(*input.Balance) {
		return intent{}, apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext(human.String()+" > "+input.Balance.String()))
	}

	amount, err := units.ToBaseUnits(human, in.Decimals)
	if err != nil {
		return intent{}, err
	}
	if amount.Sign() == 0 {
		// Below the token's smallest unit.
		return intent{in: in, out: out, human: human, amount: amount, zero: true}, nil
	}

	return intent{in: in, out: out, human: human, amount: amount}, nil
}

// slippageBps converts a percent tolerance to basis points.
func slippageBps(pct decimal.Decimal) uint16 {
	return uint16(pct.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
