package config

import (
	"errors"
	"fmt"
	"time"
	// Rebate cycles depend on the broker's timezone; don't rely on the host's zoneinfo.
	_ "time/tzdata"

	"grid-backtest/internal/data"
)

// ConfigError reports one invalid field. Configs are rejected, never
// clamped.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	checks := []func() error{
		c.Data.validate,
		c.Account.validate,
		c.Grid.validate,
		c.ATR.validate,
		c.Rebate.validate,
		c.Report.validate,
		func() error {
			if err := c.Logging.Validate(); err != nil {
				return invalid("logging", "%v", err)
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (d DataConfig) validate() error {
	switch d.Source {
	case "csv":
		if d.CSVDir == "" {
			return invalid("data.csv_dir", "required for the csv source")
		}
	case "postgres":
		if d.PostgresDSN == "" {
			return invalid("data.postgres_dsn", "required for the postgres source")
		}
	case "synthetic":
	default:
		return invalid("data.source", "must be csv, postgres or synthetic, got %q", d.Source)
	}
	if !data.ValidSourceID(d.Symbol) {
		return invalid("data.symbol", "invalid symbol %q", d.Symbol)
	}
	if _, _, err := data.ParseDateRange(d.StartDate, d.EndDate); err != nil {
		return invalid("data.start_date", "%v", err)
	}
	return nil
}

func (a AccountConfig) validate() error {
	if a.InitialBalance <= 0 {
		return invalid("account.initial_balance", "must be > 0")
	}
	if a.Leverage < 1 || a.Leverage > 125 {
		return invalid("account.leverage", "must be in [1, 125], got %d", a.Leverage)
	}
	if a.MakerFee < 0 || a.MakerFee >= 1 {
		return invalid("account.maker_fee", "must be in [0, 1)")
	}
	if a.TakerFee < 0 || a.TakerFee >= 1 {
		return invalid("account.taker_fee", "must be in [0, 1)")
	}
	if a.MaintenanceRatio <= 0 || a.MaintenanceRatio > 1 {
		return invalid("account.maintenance_ratio", "must be in (0, 1]")
	}
	return nil
}

func (g GridConfig) validate() error {
	if g.BidSpread < 0 || g.BidSpread >= 1 {
		return invalid("grid.bid_spread", "must be in [0, 1)")
	}
	if g.AskSpread < 0 || g.AskSpread >= 1 {
		return invalid("grid.ask_spread", "must be in [0, 1)")
	}
	if g.PositionSizeRatio <= 0 {
		return invalid("grid.position_size_ratio", "must be > 0")
	}
	if g.MaxPositionValueRatio <= 0 {
		return invalid("grid.max_position_value_ratio", "must be > 0")
	}
	if g.OrderRefreshTime < 0 {
		return invalid("grid.order_refresh_time", "must be >= 0")
	}
	if g.MinOrderAmount <= 0 {
		return invalid("grid.min_order_amount", "must be > 0")
	}
	if g.MaxOrderAmount < g.MinOrderAmount {
		return invalid("grid.max_order_amount", "must be >= min_order_amount")
	}
	return nil
}

func (a ATRConfig) validate() error {
	if a.Period < 1 {
		return invalid("atr.period", "must be >= 1")
	}
	if a.HighVolatilityThreshold <= 0 {
		return invalid("atr.high_volatility_threshold", "must be > 0")
	}
	if a.ExtremeVolatilityThreshold < a.HighVolatilityThreshold {
		return invalid("atr.extreme_volatility_threshold", "must be >= high_volatility_threshold")
	}
	if a.EmergencyCloseThreshold < a.ExtremeVolatilityThreshold {
		return invalid("atr.emergency_close_threshold", "must be >= extreme_volatility_threshold")
	}
	if a.MaxImbalanceRatio < 0 || a.MaxImbalanceRatio >= 1 {
		return invalid("atr.max_imbalance_ratio", "must be in [0, 1)")
	}
	if a.PositionBalanceRatio <= 0 || a.PositionBalanceRatio >= 1 {
		return invalid("atr.position_balance_ratio", "must be in (0, 1)")
	}
	return nil
}

func (r RebateConfig) validate() error {
	if !r.UseFeeRebate {
		return nil
	}
	if r.RebateRate < 0 || r.RebateRate > 1 {
		return invalid("rebate.rebate_rate", "must be in [0, 1]")
	}
	if r.FXRate <= 0 {
		return invalid("rebate.fx_rate", "must be > 0")
	}
	if r.PayoutDay < 1 || r.PayoutDay > 28 {
		return invalid("rebate.payout_day", "must be in [1, 28]")
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return invalid("rebate.timezone", "%v", err)
	}
	return nil
}

func (r ReportConfig) validate() error {
	if r.EquitySampleInterval < 1 {
		return invalid("report.equity_sample_interval", "must be >= 1")
	}
	return nil
}
