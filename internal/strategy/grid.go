package strategy

import (
	"errors"
	"time"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// GridConfig configures symmetric grid quoting around the mid price.
type GridConfig struct {
	BidSpread             decimal.Decimal
	AskSpread             decimal.Decimal
	PositionSizeRatio     decimal.Decimal
	MaxPositionValueRatio decimal.Decimal
	OrderRefreshTime      time.Duration
	UseDynamicOrderSize   bool
	MinOrderAmount        decimal.Decimal
	MaxOrderAmount        decimal.Decimal
}

func (p GridConfig) Validate() error {
	one := decimal.NewFromInt(1)
	if p.BidSpread.IsNegative() || p.BidSpread.GreaterThanOrEqual(one) {
		return errors.New("bid spread must be in [0, 1)")
	}
	if p.AskSpread.IsNegative() || p.AskSpread.GreaterThanOrEqual(one) {
		return errors.New("ask spread must be in [0, 1)")
	}
	if !p.PositionSizeRatio.IsPositive() {
		return errors.New("position size ratio must be > 0")
	}
	if !p.MaxPositionValueRatio.IsPositive() {
		return errors.New("max position value ratio must be > 0")
	}
	if p.OrderRefreshTime < 0 {
		return errors.New("order refresh time must be >= 0")
	}
	if !p.MinOrderAmount.IsPositive() {
		return errors.New("min order amount must be > 0")
	}
	if p.MaxOrderAmount.LessThan(p.MinOrderAmount) {
		return errors.New("max order amount must be >= min order amount")
	}
	return nil
}

// GridStrategy quotes one bid and one ask around the mid each refresh,
// closing held legs before opening new exposure.
type GridStrategy struct {
	params  GridConfig
	account AccountView
	filter  Filter

	lastRefresh int64
	refreshed   bool
}

func NewGridStrategy(params GridConfig, account AccountView, filter Filter) (*GridStrategy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("account is nil")
	}
	return &GridStrategy{params: params, account: account, filter: filter}, nil
}

func (s *GridStrategy) Name() string { return "grid" }

// ComputeOrderSize returns the per-order amount: the fixed minimum, or
// equity*position_size_ratio/price clamped to [min, max].
func (s *GridStrategy) ComputeOrderSize(equity, price decimal.Decimal) decimal.Decimal {
	if !s.params.UseDynamicOrderSize || !price.IsPositive() {
		return s.params.MinOrderAmount
	}
	size := model.Quo(equity.Mul(s.params.PositionSizeRatio), price)
	if size.LessThan(s.params.MinOrderAmount) {
		return s.params.MinOrderAmount
	}
	if size.GreaterThan(s.params.MaxOrderAmount) {
		return s.params.MaxOrderAmount
	}
	return size
}

// Due reports whether the refresh cooldown has elapsed at timestamp (ms).
func (s *GridStrategy) Due(timestamp int64) bool {
	if !s.refreshed {
		return true
	}
	return timestamp-s.lastRefresh >= s.params.OrderRefreshTime.Milliseconds()
}

// GenerateOrders emits close orders for held legs, then open orders for
// both sides while the leg stays under max_position_value_ratio*equity.
// Opening orders vetoed by the filter are dropped.
func (s *GridStrategy) GenerateOrders(ctx Context) ([]Order, bool) {
	if !s.Due(ctx.Timestamp) {
		return nil, false
	}
	s.lastRefresh = ctx.Timestamp
	s.refreshed = true

	if !ctx.Mid.IsPositive() {
		return nil, true
	}
	one := decimal.NewFromInt(1)
	bid := ctx.Mid.Mul(one.Sub(s.params.BidSpread))
	ask := ctx.Mid.Mul(one.Add(s.params.AskSpread))

	equity := s.account.Equity()
	size := s.ComputeOrderSize(equity, ctx.Mid)
	long, short := s.account.Long(), s.account.Short()

	orders := make([]Order, 0, 4)
	if long.Size.IsPositive() {
		orders = append(orders, Order{Action: model.ActionCloseLong, Amount: decimal.Min(size, long.Size), Price: ask})
	}
	if short.Size.IsPositive() {
		orders = append(orders, Order{Action: model.ActionCloseShort, Amount: decimal.Min(size, short.Size), Price: bid})
	}

	limit := equity.Mul(s.params.MaxPositionValueRatio)
	if long.Size.Add(size).Mul(ctx.Mid).LessThanOrEqual(limit) {
		orders = append(orders, Order{Action: model.ActionOpenLong, Amount: size, Price: bid})
	}
	if short.Size.Add(size).Mul(ctx.Mid).LessThanOrEqual(limit) {
		orders = append(orders, Order{Action: model.ActionOpenShort, Amount: size, Price: ask})
	}

	if s.filter == nil {
		return orders, true
	}
	kept := orders[:0]
	for _, o := range orders {
		if o.Action.IsOpen() && s.filter.ShouldFilter(o.Action) {
			continue
		}
		kept = append(kept, o)
	}
	return kept, true
}
