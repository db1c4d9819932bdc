package store

import "github.com/shopspring/decimal"

// toMinor converts an amount to minor currency units (paise, cents).
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// fromMinor converts minor currency units back to an amount.
func fromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}
