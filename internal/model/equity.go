package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp int64           `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

func (p EquityPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}
