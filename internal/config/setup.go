package config

import (
	"time"

	"grid-backtest/internal/backtest"
	"grid-backtest/internal/exchange"
	"grid-backtest/internal/model"
	"grid-backtest/internal/rebate"
	"grid-backtest/internal/risk"
	"grid-backtest/internal/strategy"
)

// Setup converts a validated config into the engine's run input.
func (c *Config) Setup() (backtest.Setup, error) {
	if err := c.Validate(); err != nil {
		return backtest.Setup{}, err
	}
	// Validate already loaded it; empty means UTC.
	loc, _ := time.LoadLocation(c.Rebate.Timezone)

	return backtest.Setup{
		Account: exchange.Params{
			InitialBalance:   model.Dec(c.Account.InitialBalance),
			Leverage:         c.Account.Leverage,
			MakerFeeRate:     model.Dec(c.Account.MakerFee),
			TakerFeeRate:     model.Dec(c.Account.TakerFee),
			MaintenanceRatio: model.Dec(c.Account.MaintenanceRatio),
		},
		Grid: strategy.GridConfig{
			BidSpread:             model.Dec(c.Grid.BidSpread),
			AskSpread:             model.Dec(c.Grid.AskSpread),
			PositionSizeRatio:     model.Dec(c.Grid.PositionSizeRatio),
			MaxPositionValueRatio: model.Dec(c.Grid.MaxPositionValueRatio),
			OrderRefreshTime:      time.Duration(c.Grid.OrderRefreshTime * float64(time.Second)),
			UseDynamicOrderSize:   c.Grid.UseDynamicOrderSize,
			MinOrderAmount:        model.Dec(c.Grid.MinOrderAmount),
			MaxOrderAmount:        model.Dec(c.Grid.MaxOrderAmount),
		},
		Risk: risk.Config{
			Period:                     c.ATR.Period,
			HighVolatilityThreshold:    model.Dec(c.ATR.HighVolatilityThreshold),
			ExtremeVolatilityThreshold: model.Dec(c.ATR.ExtremeVolatilityThreshold),
			EmergencyCloseThreshold:    model.Dec(c.ATR.EmergencyCloseThreshold),
			MaxImbalanceRatio:          model.Dec(c.ATR.MaxImbalanceRatio),
			PositionBalanceRatio:       model.Dec(c.ATR.PositionBalanceRatio),
		},
		Rebate: rebate.Config{
			Enabled:    c.Rebate.UseFeeRebate,
			RebateRate: model.Dec(c.Rebate.RebateRate),
			FXRate:     model.Dec(c.Rebate.FXRate),
			PayoutDay:  c.Rebate.PayoutDay,
			Location:   loc,
		},
		EquitySampleInterval: c.Report.EquitySampleInterval,
	}, nil
}
