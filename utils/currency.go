package utils

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrTooManyDecimals = errors.New("amount must have at most 2 decimal places")

// FormatCents renders an amount in minor units with two decimals, e.g. 21999 -> "219.99".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseAmount converts a decimal major-unit amount into minor units. Amounts
// with more precision than the minor unit are rejected rather than rounded.
func ParseAmount(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	return shifted.IntPart(), nil
}
