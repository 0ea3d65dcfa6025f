package model

import "github.com/shopspring/decimal"

// Position is one hedge-mode leg. Size and AvgEntryPrice are never negative.
type Position struct {
	Size          decimal.Decimal `json:"size"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
}

func (p Position) IsFlat() bool {
	return p.Size.IsZero()
}

// Notional is size * price.
func (p Position) Notional(price decimal.Decimal) decimal.Decimal {
	return p.Size.Mul(price)
}
