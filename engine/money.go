package engine

import (
	"github.com/shopspring/decimal"
)

// All ledger arithmetic happens in int64 minor units (cents). Decimals exist
// only at the API boundary.

// Epsilon is the reconciliation tolerance in minor units (0.01 in major units).
const Epsilon int64 = 1

// ToMinor converts a decimal major-unit amount to minor units. Amounts with more
// than two decimal places are rejected rather than rounded.
func ToMinor(d decimal.Decimal) (int64, error) {
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, validationErrf("amount %s has more than two decimal places", d.String())
	}
	return cents.IntPart(), nil
}

// FromMinor converts minor units back to a two-decimal major-unit value.
func FromMinor(m int64) decimal.Decimal {
	return decimal.New(m, -2)
}

// WithinEpsilon reports whether two minor-unit amounts reconcile.
func WithinEpsilon(a, b int64) bool {
	return abs(a-b) <= Epsilon
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
