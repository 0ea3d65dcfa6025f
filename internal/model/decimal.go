package model

import "github.com/shopspring/decimal"

// DivisionPrecision is the number of fractional digits kept by Quo.
// Multiplication and addition on decimal.Decimal are exact, so division is the
// only place rounding enters the ledger.
const DivisionPrecision int32 = 28

// Quo divides a by b, rounding half away from zero to DivisionPrecision digits.
// Callers must ensure b is non-zero.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// Dec converts a configuration float into a decimal using its shortest
// representation (0.0002 stays 0.0002).
func Dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
