package util

import (
	"github.com/shopspring/decimal"
)

// FormatDecimal renders val with exactly precision places, for exchange payloads.
// Rounding is half away from zero on the decimal value of val.
func FormatDecimal(val float64, precision int32) string {
	return decimal.NewFromFloat(val).StringFixed(precision)
}
