package analysis

import (
	"math"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// Metrics summarizes one run.
type Metrics struct {
	TotalReturn   float64         `json:"total_return"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	SharpeRatio   float64         `json:"sharpe_ratio"`
	WinRate       float64         `json:"win_rate"`
	TotalTrades   int             `json:"total_trades"`
	ClosingTrades int             `json:"closing_trades"`
	WinningTrades int             `json:"winning_trades"`
	TotalFees     decimal.Decimal `json:"total_fees"`
}

// Summarize computes run metrics from the trade log and equity curve.
func Summarize(initialBalance, finalEquity decimal.Decimal, trades []model.TradeRecord, curve []model.EquityPoint) Metrics {
	m := Metrics{TotalTrades: len(trades), TotalFees: decimal.Zero}
	if initialBalance.IsPositive() {
		m.TotalReturn = model.Quo(finalEquity.Sub(initialBalance), initialBalance).InexactFloat64()
	}
	for _, t := range trades {
		m.TotalFees = m.TotalFees.Add(t.Fee)
		if !t.Action.IsClose() {
			continue
		}
		m.ClosingTrades++
		if t.RealizedPnL.IsPositive() {
			m.WinningTrades++
		}
	}
	if m.ClosingTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosingTrades)
	}
	m.MaxDrawdown = drawdownFrom(initialBalance.InexactFloat64(), curve)
	m.SharpeRatio = SharpeRatio(curve)
	return m
}

// MaxDrawdown is the largest (peak-equity)/peak over the curve.
func MaxDrawdown(curve []model.EquityPoint) float64 {
	return drawdownFrom(0, curve)
}

// drawdownFrom is MaxDrawdown with the peak starting at start, so a run that
// only ever loses still reports the drop from its initial balance.
func drawdownFrom(start float64, curve []model.EquityPoint) float64 {
	peak := start
	worst := 0.0
	for _, p := range curve {
		eq := p.Equity.InexactFloat64()
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - eq) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// SharpeRatio is mean/stdev of per-sample simple returns, using the
// population standard deviation and no annualization. It is 0 with fewer
// than two returns or a flat curve.
func SharpeRatio(curve []model.EquityPoint) float64 {
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.InexactFloat64()
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity.InexactFloat64()/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std
}
