package exchange

import (
	"fmt"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// Params defines the economic parameters of a simulated account.
type Params struct {
	InitialBalance   decimal.Decimal
	Leverage         int
	MakerFeeRate     decimal.Decimal
	TakerFeeRate     decimal.Decimal
	MaintenanceRatio decimal.Decimal
	// Ladder defaults to DefaultLadder when it has no tiers.
	Ladder Ladder
}

func (p Params) Validate() error {
	if !p.InitialBalance.IsPositive() {
		return fmt.Errorf("%w: initial balance must be > 0", ErrInvalidParams)
	}
	if p.Leverage < 1 || p.Leverage > 125 {
		return fmt.Errorf("%w: leverage must be in [1, 125]", ErrInvalidParams)
	}
	if p.MakerFeeRate.IsNegative() || p.TakerFeeRate.IsNegative() {
		return fmt.Errorf("%w: fee rates must be >= 0", ErrInvalidParams)
	}
	if !p.MaintenanceRatio.IsPositive() {
		return fmt.Errorf("%w: maintenance ratio must be > 0", ErrInvalidParams)
	}
	return nil
}

// Fill is a request to execute against the account.
type Fill struct {
	Action    model.Action
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp int64
	// Taker selects the taker fee rate; fills are maker otherwise.
	Taker  bool
	Reason model.TradeReason
}

// Account is a hedge-mode margin ledger: an independent long and short leg,
// a realized balance, and an append-only trade log. It is not safe for
// concurrent use; one run owns one account.
type Account struct {
	params    Params
	balance   decimal.Decimal
	long      model.Position
	short     model.Position
	lastPrice decimal.Decimal
	trades    []model.TradeRecord
}

func NewAccount(p Params) (*Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Ladder.Tiers) == 0 {
		p.Ladder = DefaultLadder
	}
	return &Account{
		params:  p,
		balance: p.InitialBalance,
	}, nil
}

// UpdatePrice sets the mark price used for PnL, equity and margin reads.
func (a *Account) UpdatePrice(price decimal.Decimal) {
	a.lastPrice = price
}

func (a *Account) LastPrice() decimal.Decimal       { return a.lastPrice }
func (a *Account) RealizedBalance() decimal.Decimal { return a.balance }
func (a *Account) Long() model.Position             { return a.long }
func (a *Account) Short() model.Position            { return a.short }
func (a *Account) LongSize() decimal.Decimal        { return a.long.Size }
func (a *Account) ShortSize() decimal.Decimal       { return a.short.Size }
func (a *Account) Params() Params                   { return a.params }

// NetPosition is long size minus short size.
func (a *Account) NetPosition() decimal.Decimal {
	return a.long.Size.Sub(a.short.Size)
}

// NetNotional is |net position| * last price.
func (a *Account) NetNotional() decimal.Decimal {
	return a.NetPosition().Abs().Mul(a.lastPrice)
}

// UnrealizedPnL marks both legs to the last price.
func (a *Account) UnrealizedPnL() decimal.Decimal {
	longPnL := a.long.Size.Mul(a.lastPrice.Sub(a.long.AvgEntryPrice))
	shortPnL := a.short.Size.Mul(a.short.AvgEntryPrice.Sub(a.lastPrice))
	return longPnL.Add(shortPnL)
}

// Equity is realized balance plus unrealized PnL.
func (a *Account) Equity() decimal.Decimal {
	return a.balance.Add(a.UnrealizedPnL())
}

// EffectiveLeverage is the configured leverage capped by the margin ladder
// for the current net notional.
func (a *Account) EffectiveLeverage() int {
	return a.params.Ladder.EffectiveLeverage(a.params.Leverage, a.NetNotional())
}

// MaintenanceMargin is net notional / effective leverage * maintenance ratio.
func (a *Account) MaintenanceMargin() decimal.Decimal {
	lev := decimal.NewFromInt(int64(a.EffectiveLeverage()))
	return model.Quo(a.NetNotional(), lev).Mul(a.params.MaintenanceRatio)
}

// IsLiquidated reports equity < maintenance margin.
func (a *Account) IsLiquidated() bool {
	return a.Equity().LessThan(a.MaintenanceMargin())
}

// Trades returns a copy of the trade log.
func (a *Account) Trades() []model.TradeRecord {
	out := make([]model.TradeRecord, len(a.trades))
	copy(out, a.trades)
	return out
}

func (a *Account) TradeCount() int { return len(a.trades) }

// Fee returns amount * price * rate for the selected liquidity side.
func (a *Account) Fee(amount, price decimal.Decimal, taker bool) decimal.Decimal {
	rate := a.params.MakerFeeRate
	if taker {
		rate = a.params.TakerFeeRate
	}
	return amount.Mul(price).Mul(rate)
}

// Execute applies a fill: the fee is deducted from the realized balance,
// increases move the leg's weighted-average entry, and decreases realize PnL.
// Closing more than the held size fails with ErrInsufficientClose.
func (a *Account) Execute(f Fill) (model.TradeRecord, error) {
	if !f.Amount.IsPositive() {
		return model.TradeRecord{}, fmt.Errorf("%w: amount %s", ErrInvalidAmount, f.Amount)
	}
	if !f.Price.IsPositive() {
		return model.TradeRecord{}, fmt.Errorf("%w: price %s", ErrInvalidAmount, f.Price)
	}
	if !f.Action.Valid() {
		return model.TradeRecord{}, fmt.Errorf("execute: unknown action %q", f.Action)
	}

	leg := &a.long
	if f.Action.Side() == model.SideShort {
		leg = &a.short
	}

	realized := decimal.Zero
	if f.Action.IsOpen() {
		newSize := leg.Size.Add(f.Amount)
		cost := leg.Size.Mul(leg.AvgEntryPrice).Add(f.Amount.Mul(f.Price))
		leg.AvgEntryPrice = model.Quo(cost, newSize)
		leg.Size = newSize
	} else {
		if f.Amount.GreaterThan(leg.Size) {
			return model.TradeRecord{}, fmt.Errorf("%w: %s %s, held %s", ErrInsufficientClose, f.Action, f.Amount, leg.Size)
		}
		if f.Action == model.ActionCloseLong {
			realized = f.Amount.Mul(f.Price.Sub(leg.AvgEntryPrice))
		} else {
			realized = f.Amount.Mul(leg.AvgEntryPrice.Sub(f.Price))
		}
		leg.Size = leg.Size.Sub(f.Amount)
		if leg.Size.IsZero() {
			leg.AvgEntryPrice = decimal.Zero
		}
	}

	fee := a.Fee(f.Amount, f.Price, f.Taker)
	a.balance = a.balance.Add(realized).Sub(fee)

	rec, err := model.NewTradeRecord(model.TradeRecord{
		Timestamp:       f.Timestamp,
		Action:          f.Action,
		Amount:          f.Amount,
		Price:           f.Price,
		Fee:             fee,
		Taker:           f.Taker,
		Leverage:        a.EffectiveLeverage(),
		RealizedPnL:     realized,
		ResultingLong:   a.long.Size,
		ResultingShort:  a.short.Size,
		ResultingEquity: a.Equity(),
		Reason:          f.Reason,
	})
	if err != nil {
		return model.TradeRecord{}, err
	}
	a.trades = append(a.trades, rec)
	return rec, nil
}
