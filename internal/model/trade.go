package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeReason says what produced a fill.
type TradeReason string

const (
	ReasonGrid          TradeReason = "grid"
	ReasonRiskExtreme   TradeReason = "risk_extreme"
	ReasonRiskEmergency TradeReason = "risk_emergency"
)

// TradeRecord is one executed fill. Records are immutable once appended to an
// account's trade log.
type TradeRecord struct {
	Timestamp       int64           `json:"timestamp"`
	Action          Action          `json:"action"`
	Amount          decimal.Decimal `json:"amount"`
	Price           decimal.Decimal `json:"price"`
	Fee             decimal.Decimal `json:"fee"`
	Taker           bool            `json:"taker"`
	Leverage        int             `json:"leverage"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	ResultingLong   decimal.Decimal `json:"resulting_long"`
	ResultingShort  decimal.Decimal `json:"resulting_short"`
	ResultingEquity decimal.Decimal `json:"resulting_equity"`
	Reason          TradeReason     `json:"reason"`
}

// NewTradeRecord validates the record invariants and returns the record.
func NewTradeRecord(r TradeRecord) (TradeRecord, error) {
	if !r.Action.Valid() {
		return TradeRecord{}, fmt.Errorf("trade record: unknown action %q", r.Action)
	}
	if !r.Amount.IsPositive() {
		return TradeRecord{}, errors.New("trade record: amount must be > 0")
	}
	if !r.Price.IsPositive() {
		return TradeRecord{}, errors.New("trade record: price must be > 0")
	}
	if r.Fee.IsNegative() {
		return TradeRecord{}, errors.New("trade record: fee must be >= 0")
	}
	if r.ResultingLong.IsNegative() || r.ResultingShort.IsNegative() {
		return TradeRecord{}, errors.New("trade record: resulting legs must be >= 0")
	}
	if r.Reason == "" {
		r.Reason = ReasonGrid
	}
	return r, nil
}

func (r TradeRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// Notional is amount * price.
func (r TradeRecord) Notional() decimal.Decimal {
	return r.Amount.Mul(r.Price)
}
