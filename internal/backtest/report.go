package backtest

import (
	"grid-backtest/internal/model"
	"grid-backtest/internal/rebate"

	"github.com/shopspring/decimal"
)

// Report is the outcome of one run. A liquidated or aborted run still
// produces a report covering the candles processed before it stopped.
type Report struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	TotalReturn    float64         `json:"total_return"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        float64         `json:"win_rate"`

	Liquidated           bool   `json:"liquidated"`
	LiquidationTimestamp *int64 `json:"liquidation_timestamp,omitempty"`
	Aborted              bool   `json:"aborted"`

	Trades      []model.TradeRecord `json:"trades"`
	EquityCurve []model.EquityPoint `json:"equity_curve"`

	Rebates     []rebate.Period `json:"rebates"`
	TotalRebate decimal.Decimal `json:"total_rebate"`
	TotalFees   decimal.Decimal `json:"total_fees"`

	CandlesProcessed int `json:"candles_processed"`

	// Final leg sizes, for inspection.
	FinalLong  decimal.Decimal `json:"final_long"`
	FinalShort decimal.Decimal `json:"final_short"`
}

// NetProfit is final equity minus initial balance plus rebates.
func (r *Report) NetProfit() decimal.Decimal {
	return r.FinalEquity.Sub(r.InitialBalance).Add(r.TotalRebate)
}
