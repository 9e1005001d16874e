package domain

import "github.com/shopspring/decimal"

// CurrencyPlaces is the number of fractional digits kept for currency values.
const CurrencyPlaces = 2

// Cent is the smallest currency unit.
var Cent = decimal.New(1, -CurrencyPlaces)

// RoundCurrency rounds d to two decimals, ties away from zero
// (12.345 -> 12.35), which is conventional half-up currency rounding.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// ParseAmount parses a decimal string, rejecting anything that is not a plain
// number.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
