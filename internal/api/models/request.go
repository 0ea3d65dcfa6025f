package models

import "encoding/json"

// BacktestRequest represents the request body for running a backtest.
//
// Config is decoded over the server's base config (optionally overlaid by a
// preset), so only the fields present in the JSON change.
type BacktestRequest struct {
	Preset  string          `json:"preset,omitempty"` // preset name from /api/v1/presets
	Config  json.RawMessage `json:"config,omitempty"`
	Options BacktestOptions `json:"options,omitempty"`
}

// BacktestOptions contains optional backtest parameters
type BacktestOptions struct {
	IncludeTrades  bool `json:"include_trades,omitempty"`  // default: false
	IncludeEquity  bool `json:"include_equity,omitempty"`  // default: false
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"` // 0 = server default
}

// CompareBacktestRequest represents a request to compare multiple backtests
type CompareBacktestRequest struct {
	Preset     string              `json:"preset,omitempty"`
	BaseConfig json.RawMessage     `json:"base_config,omitempty"`
	Variations []BacktestVariation `json:"variations" binding:"required,min=1,dive"`
	RankBy     string              `json:"rank_by,omitempty"` // "sharpe" (default) or "return"
}

// BacktestVariation defines a variation to test
type BacktestVariation struct {
	Name   string          `json:"name" binding:"required"`
	Config json.RawMessage `json:"config"`
}

// ProfileRequest selects the candles summarized by GET /api/v1/sources/:id/profile.
type ProfileRequest struct {
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
}

// RankSourcesRequest represents a request to rank sources by volatility.
type RankSourcesRequest struct {
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
	SourceIDs string `form:"source_ids"`      // comma-separated; empty = all listed sources
	Limit     int    `form:"limit,omitempty"` // default: 10
}
