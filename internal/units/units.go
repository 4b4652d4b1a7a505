// Package units converts between human-readable token amounts and integer base units.
package units

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the precision accepted by the converters.
const MaxDecimals = 18

// Input bounds. Base-unit amounts are u64 on chain and in the aggregator API.
const (
	MaxAmountLength = 64
	maxExponent     = 64
	maxBaseDigits   = 20 // len("18446744073709551615")
)

var (
	hundred      = decimal.NewFromInt(100)
	maxBaseUnits = new(big.Int).SetUint64(math.MaxUint64)
)

func outOfRange(amount string) error {
	return apperror.Validation(apperror.CodeInvalidAmount, fmt.Sprintf("amount %s is out of range", amount))
}

func checkDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return apperror.Validation(apperror.CodeInvalidAmount, fmt.Sprintf("decimals %d out of range [0, %d]", decimals, MaxDecimals))
	}
	return nil
}

// ToBaseUnits scales amount by 10^decimals and truncates toward zero.
// It never rounds up, so a converted amount never exceeds what the user typed.
// Results above math.MaxUint64 are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if err := checkDecimals(decimals); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, apperror.Validation(apperror.CodeInvalidAmount, "amount must not be negative")
	}
	if amount.IsZero() {
		return new(big.Int), nil
	}
	exp := int(amount.Exponent())
	if exp < -4*maxExponent || amount.NumDigits()+exp+decimals > maxBaseDigits {
		return nil, outOfRange(fmt.Sprintf("%se%d", amount.Coefficient(), exp))
	}
	base := amount.Shift(int32(decimals)).Truncate(0).BigInt()
	if base.Cmp(maxBaseUnits) > 0 {
		return nil, outOfRange(amount.String())
	}
	return base, nil
}

// ToHumanAmount divides base units by 10^decimals exactly.
func ToHumanAmount(base *big.Int, decimals int) (decimal.Decimal, error) {
	if err := checkDecimals(decimals); err != nil {
		return decimal.Zero, err
	}
	if base == nil || base.Sign() < 0 {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, "base units must be a non-negative integer")
	}
	return decimal.NewFromBigInt(base, -int32(decimals)), nil
}

// ParseAmount parses user input. Non-numeric, negative and non-finite values are
// rejected, as are inputs longer than MaxAmountLength or with an exponent beyond ±64.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, "amount is required")
	}
	if len(s) > MaxAmountLength {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount,
			fmt.Sprintf("amount is longer than %d characters", MaxAmountLength))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContext(fmt.Sprintf("amount %q is not a number", s)), apperror.WithCause(err))
	}
	if d.IsNegative() {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, "amount must not be negative")
	}
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return decimal.Zero, outOfRange(s)
	}
	return d, nil
}

// FromFloat converts a float, rejecting NaN, infinities and negatives.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, "amount must be finite")
	}
	if f < 0 {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, "amount must not be negative")
	}
	return decimal.NewFromFloat(f), nil
}

// ParseBaseUnits parses an upstream integer amount such as Jupiter's outAmount.
func ParseBaseUnits(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid base unit amount %q", s)
	}
	return n, nil
}

// ApplySlippage returns floor(amount * (1 - pct/100)), never more than amount.
func ApplySlippage(amount *big.Int, pct decimal.Decimal) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if !pct.IsPositive() {
		return new(big.Int).Set(amount)
	}
	if pct.GreaterThanOrEqual(hundred) {
		return new(big.Int)
	}
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return decimal.NewFromBigInt(amount, 0).Mul(factor).Truncate(0).BigInt()
}

// Format renders d with a fixed number of fractional digits.
func Format(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
