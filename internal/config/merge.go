package config

// Merge overlays non-zero fields from override onto base. Sweeps and API
// requests use it to vary a few parameters of a base config.
//
// Note: booleans can only be switched on this way, and a numeric field
// cannot be overridden to exactly 0.
func Merge(base, override Config) Config {
	out := base
	out.PresetFile = pick(base.PresetFile, override.PresetFile)

	out.Data = DataConfig{
		Source:        pick(base.Data.Source, override.Data.Source),
		Symbol:        pick(base.Data.Symbol, override.Data.Symbol),
		StartDate:     pick(base.Data.StartDate, override.Data.StartDate),
		EndDate:       pick(base.Data.EndDate, override.Data.EndDate),
		CSVDir:        pick(base.Data.CSVDir, override.Data.CSVDir),
		PostgresDSN:   pick(base.Data.PostgresDSN, override.Data.PostgresDSN),
		PostgresTable: pick(base.Data.PostgresTable, override.Data.PostgresTable),
		SyntheticSeed: pick(base.Data.SyntheticSeed, override.Data.SyntheticSeed),
		CacheDir:      pick(base.Data.CacheDir, override.Data.CacheDir),
	}
	out.Account = AccountConfig{
		InitialBalance:   pick(base.Account.InitialBalance, override.Account.InitialBalance),
		Leverage:         pick(base.Account.Leverage, override.Account.Leverage),
		MakerFee:         pick(base.Account.MakerFee, override.Account.MakerFee),
		TakerFee:         pick(base.Account.TakerFee, override.Account.TakerFee),
		MaintenanceRatio: pick(base.Account.MaintenanceRatio, override.Account.MaintenanceRatio),
	}
	out.Grid = GridConfig{
		BidSpread:             pick(base.Grid.BidSpread, override.Grid.BidSpread),
		AskSpread:             pick(base.Grid.AskSpread, override.Grid.AskSpread),
		PositionSizeRatio:     pick(base.Grid.PositionSizeRatio, override.Grid.PositionSizeRatio),
		MaxPositionValueRatio: pick(base.Grid.MaxPositionValueRatio, override.Grid.MaxPositionValueRatio),
		OrderRefreshTime:      pick(base.Grid.OrderRefreshTime, override.Grid.OrderRefreshTime),
		UseDynamicOrderSize:   base.Grid.UseDynamicOrderSize || override.Grid.UseDynamicOrderSize,
		MinOrderAmount:        pick(base.Grid.MinOrderAmount, override.Grid.MinOrderAmount),
		MaxOrderAmount:        pick(base.Grid.MaxOrderAmount, override.Grid.MaxOrderAmount),
	}
	out.ATR = ATRConfig{
		Period:                     pick(base.ATR.Period, override.ATR.Period),
		HighVolatilityThreshold:    pick(base.ATR.HighVolatilityThreshold, override.ATR.HighVolatilityThreshold),
		ExtremeVolatilityThreshold: pick(base.ATR.ExtremeVolatilityThreshold, override.ATR.ExtremeVolatilityThreshold),
		EmergencyCloseThreshold:    pick(base.ATR.EmergencyCloseThreshold, override.ATR.EmergencyCloseThreshold),
		MaxImbalanceRatio:          pick(base.ATR.MaxImbalanceRatio, override.ATR.MaxImbalanceRatio),
		PositionBalanceRatio:       pick(base.ATR.PositionBalanceRatio, override.ATR.PositionBalanceRatio),
	}
	out.Rebate = RebateConfig{
		UseFeeRebate: base.Rebate.UseFeeRebate || override.Rebate.UseFeeRebate,
		RebateRate:   pick(base.Rebate.RebateRate, override.Rebate.RebateRate),
		FXRate:       pick(base.Rebate.FXRate, override.Rebate.FXRate),
		PayoutDay:    pick(base.Rebate.PayoutDay, override.Rebate.PayoutDay),
		Timezone:     pick(base.Rebate.Timezone, override.Rebate.Timezone),
	}
	out.Report = ReportConfig{
		EquitySampleInterval: pick(base.Report.EquitySampleInterval, override.Report.EquitySampleInterval),
		TradesCSV:            pick(base.Report.TradesCSV, override.Report.TradesCSV),
		EquityCSV:            pick(base.Report.EquityCSV, override.Report.EquityCSV),
		JSON:                 pick(base.Report.JSON, override.Report.JSON),
	}
	out.Logging.Level = pick(base.Logging.Level, override.Logging.Level)
	out.Logging.Format = pick(base.Logging.Format, override.Logging.Format)
	out.Logging.Development = base.Logging.Development || override.Logging.Development
	if len(override.Logging.OutputPaths) > 0 {
		out.Logging.OutputPaths = override.Logging.OutputPaths
	}
	return out
}

func pick[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}
