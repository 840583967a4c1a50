// Package types holds value types shared across domains.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. Prices, costs and book values use it.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept after arithmetic.
const MoneyScale = 2

// ParseMoney accepts "1234.5", " 1234.50 " and "" (zero).
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// MustMoney panics on malformed input. Constants and tests only.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// RoundMoney rounds half away from zero to MoneyScale digits.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}
