// Package money converts between the float amounts banks export and the
// cents stored in the ledger.
package money

import "github.com/shopspring/decimal"

// ToCents rounds f to the nearest cent.
func ToCents(f float64) int64 {
	return decimal.NewFromFloat(f).Shift(2).Round(0).IntPart()
}

// FromCents converts stored cents back to a float amount.
func FromCents(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

// Format renders f with exactly two decimals and '.' as separator.
func Format(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}
