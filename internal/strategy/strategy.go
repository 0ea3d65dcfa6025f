package strategy

import (
	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// Context is what a strategy sees at one trajectory point.
type Context struct {
	// Index is the candle index within the run; Point is 0..4 within the
	// candle's intrabar trajectory.
	Index     int
	Point     int
	Timestamp int64
	// Mid is the reference price quotes are centred on; Price is the
	// current trajectory point.
	Mid   decimal.Decimal
	Price decimal.Decimal
}

// Order is an advisory quote. The matcher decides whether it fills.
type Order struct {
	Action model.Action
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Strategy produces quotes. ok is false when the strategy has nothing new to
// say at this point and the resting orders should stay in place.
type Strategy interface {
	Name() string
	GenerateOrders(ctx Context) (orders []Order, ok bool)
}

// AccountView is the read-only account surface strategies use.
type AccountView interface {
	Equity() decimal.Decimal
	Long() model.Position
	Short() model.Position
}

// Filter vetoes orders, typically the volatility risk manager.
type Filter interface {
	ShouldFilter(action model.Action) bool
}
