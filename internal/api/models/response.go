package models

import (
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/model"
	"grid-backtest/internal/rebate"

	"github.com/shopspring/decimal"
)

// Run statuses.
const (
	StatusCompleted  = "completed"
	StatusLiquidated = "liquidated"
	StatusAborted    = "aborted"
)

// BacktestResponse represents the response from a backtest run
type BacktestResponse struct {
	ID          string              `json:"id,omitempty"`
	Status      string              `json:"status"`
	Summary     BacktestSummary     `json:"summary"`
	Trades      []model.TradeRecord `json:"trades,omitempty"`
	EquityCurve []model.EquityPoint `json:"equity_curve,omitempty"`
}

// BacktestSummary contains aggregated backtest results
type BacktestSummary struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	TotalReturn    float64         `json:"total_return"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	WinRate        float64         `json:"win_rate"`
	TotalTrades    int             `json:"total_trades"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	TotalRebate    decimal.Decimal `json:"total_rebate"`
	Rebates        []rebate.Period `json:"rebates,omitempty"`

	Liquidated           bool        `json:"liquidated"`
	LiquidationTimestamp *int64      `json:"liquidation_timestamp,omitempty"`
	CandlesProcessed     int         `json:"candles_processed"`
	BacktestWindow       *TimeWindow `json:"backtest_window,omitempty"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TradesResponse is the body of GET /api/v1/backtest/:id/trades
type TradesResponse struct {
	ID     string              `json:"id"`
	Count  int                 `json:"count"`
	Trades []model.TradeRecord `json:"trades"`
}

// EquityResponse is the body of GET /api/v1/backtest/:id/equity
type EquityResponse struct {
	ID          string              `json:"id"`
	Count       int                 `json:"count"`
	EquityCurve []model.EquityPoint `json:"equity_curve"`
}

// CompareBacktestResponse represents the response from a comparison
type CompareBacktestResponse struct {
	RankBy     string             `json:"rank_by"`
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Rank    int             `json:"rank"`
	Name    string          `json:"name"`
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Summary BacktestSummary `json:"summary"`
}

// RankResponse represents the response from ranking sources
type RankResponse struct {
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked source
type Ranking struct {
	Rank int `json:"rank"`
	analysis.SourceProfile
}

// PresetInfo represents information about a config preset
type PresetInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	File        string  `json:"file"`
	Leverage    int     `json:"leverage,omitempty"`
	BidSpread   float64 `json:"bid_spread,omitempty"`
	AskSpread   float64 `json:"ask_spread,omitempty"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes one recognized config option
type ParameterInfo struct {
	Name        string      `json:"name"` // dotted config path, e.g. "grid.bid_spread"
	Type        string      `json:"type"` // "float", "int", "bool", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
}

// SourceInfo represents information about a candle source
type SourceInfo struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol,omitempty"`
	Interval string `json:"interval,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Kind     string `json:"kind"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
