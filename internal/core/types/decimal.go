// Package types provides the fixed-point money and weight primitives.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Weight is a mass in kilograms, same fixed-point representation as Money.
type Weight = decimal.Decimal

// Scale is the number of fractional digits kept for persisted amounts and weights.
const Scale int32 = 2

var (
	hundred = decimal.NewFromInt(100)

	// MinLineTotal is the floor applied to purchase line totals.
	MinLineTotal = decimal.New(1, -Scale)
)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Percent returns base × pct / 100 without intermediate rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// MaxZero clamps negative values to zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Sum adds values in order.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// EqualAmount compares two amounts after rounding both to the persisted scale.
func EqualAmount(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}
