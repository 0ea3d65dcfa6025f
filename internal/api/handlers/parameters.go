package handlers

import (
	"net/http"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/config"

	"github.com/gin-gonic/gin"
)

func bound(v float64) *float64 { return &v }

// GridParameters lists the options a request config may set, with defaults
// taken from base.
func GridParameters(base config.Config) models.StrategyInfo {
	return models.StrategyInfo{
		Name:        "grid",
		Description: "Symmetric grid market making on a hedge-mode perpetual account, with ATR-based risk control and monthly fee rebates.",
		Parameters: []models.ParameterInfo{
			{Name: "data.symbol", Type: "string", Description: "Candle source id", Default: base.Data.Symbol},
			{Name: "data.start_date", Type: "string", Description: "First day, YYYY-MM-DD (inclusive)", Default: base.Data.StartDate},
			{Name: "data.end_date", Type: "string", Description: "Last day, YYYY-MM-DD (inclusive)", Default: base.Data.EndDate},

			{Name: "account.initial_balance", Type: "float", Description: "Starting balance in quote currency", Default: base.Account.InitialBalance, Min: bound(0)},
			{Name: "account.leverage", Type: "int", Description: "Leverage used for margin", Default: base.Account.Leverage, Min: bound(1), Max: bound(125)},
			{Name: "account.maker_fee", Type: "float", Description: "Maker fee rate", Default: base.Account.MakerFee, Min: bound(0)},
			{Name: "account.taker_fee", Type: "float", Description: "Taker fee rate", Default: base.Account.TakerFee, Min: bound(0)},
			{Name: "account.maintenance_ratio", Type: "float", Description: "Maintenance margin as a share of initial margin", Default: base.Account.MaintenanceRatio, Min: bound(0), Max: bound(1)},

			{Name: "grid.bid_spread", Type: "float", Description: "Bid offset below mid as a fraction", Default: base.Grid.BidSpread, Min: bound(0), Max: bound(1)},
			{Name: "grid.ask_spread", Type: "float", Description: "Ask offset above mid as a fraction", Default: base.Grid.AskSpread, Min: bound(0), Max: bound(1)},
			{Name: "grid.position_size_ratio", Type: "float", Description: "Order notional as a share of equity", Default: base.Grid.PositionSizeRatio, Min: bound(0)},
			{Name: "grid.max_position_value_ratio", Type: "float", Description: "Per-leg notional cap as a multiple of equity", Default: base.Grid.MaxPositionValueRatio, Min: bound(0)},
			{Name: "grid.order_refresh_time", Type: "float", Description: "Seconds between quote refreshes", Default: base.Grid.OrderRefreshTime, Min: bound(0)},
			{Name: "grid.use_dynamic_order_size", Type: "bool", Description: "Size orders from equity instead of min_order_amount", Default: base.Grid.UseDynamicOrderSize},
			{Name: "grid.min_order_amount", Type: "float", Description: "Smallest order size", Default: base.Grid.MinOrderAmount, Min: bound(0)},
			{Name: "grid.max_order_amount", Type: "float", Description: "Largest order size", Default: base.Grid.MaxOrderAmount, Min: bound(0)},

			{Name: "atr.period", Type: "int", Description: "ATR window in candles", Default: base.ATR.Period, Min: bound(1)},
			{Name: "atr.high_volatility_threshold", Type: "float", Description: "ATR/price above which the position is rebalanced", Default: base.ATR.HighVolatilityThreshold, Min: bound(0)},
			{Name: "atr.extreme_volatility_threshold", Type: "float", Description: "ATR/price above which rebalancing trades as taker", Default: base.ATR.ExtremeVolatilityThreshold, Min: bound(0)},
			{Name: "atr.emergency_close_threshold", Type: "float", Description: "ATR/price above which all positions are closed", Default: base.ATR.EmergencyCloseThreshold, Min: bound(0)},
			{Name: "atr.max_imbalance_ratio", Type: "float", Description: "Tolerated |long-short|/(long+short) before rebalancing", Default: base.ATR.MaxImbalanceRatio, Min: bound(0), Max: bound(1)},
			{Name: "atr.position_balance_ratio", Type: "float", Description: "Target long share after rebalancing", Default: base.ATR.PositionBalanceRatio, Min: bound(0), Max: bound(1)},

			{Name: "rebate.use_fee_rebate", Type: "bool", Description: "Aggregate fee rebates", Default: base.Rebate.UseFeeRebate},
			{Name: "rebate.rebate_rate", Type: "float", Description: "Share of fees returned", Default: base.Rebate.RebateRate, Min: bound(0), Max: bound(1)},
			{Name: "rebate.fx_rate", Type: "float", Description: "Conversion from fee currency to payout currency", Default: base.Rebate.FXRate, Min: bound(0)},
			{Name: "rebate.payout_day", Type: "int", Description: "Day of month rebates are paid", Default: base.Rebate.PayoutDay, Min: bound(1), Max: bound(28)},
			{Name: "rebate.timezone", Type: "string", Description: "IANA timezone deciding a trade's calendar day", Default: base.Rebate.Timezone},

			{Name: "report.equity_sample_interval", Type: "int", Description: "Candles between equity samples", Default: base.Report.EquitySampleInterval, Min: bound(1)},
		},
	}
}

// ParameterHandler handles parameter documentation requests
type ParameterHandler struct {
	info models.StrategyInfo
}

func NewParameterHandler(base config.Config) *ParameterHandler {
	return &ParameterHandler{info: GridParameters(base)}
}

// ListParameters handles GET /api/v1/parameters
func (h *ParameterHandler) ListParameters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": []models.StrategyInfo{h.info}})
}
