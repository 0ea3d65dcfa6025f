package exchange

import (
	"testing"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestAccount(t *testing.T, leverage int) *Account {
	t.Helper()
	acc, err := NewAccount(Params{
		InitialBalance:   d("1000"),
		Leverage:         leverage,
		MakerFeeRate:     d("0.0002"),
		TakerFeeRate:     d("0.0005"),
		MaintenanceRatio: d("0.5"),
	})
	require.NoError(t, err)
	return acc
}

func requireEquityInvariant(t *testing.T, acc *Account) {
	t.Helper()
	want := acc.RealizedBalance().Add(acc.UnrealizedPnL())
	require.True(t, acc.Equity().Equal(want), "equity %s != balance+upnl %s", acc.Equity(), want)
}

func TestNewAccountRejectsBadParams(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"zero balance", Params{Leverage: 5, MaintenanceRatio: d("0.5")}},
		{"leverage too high", Params{InitialBalance: d("1"), Leverage: 126, MaintenanceRatio: d("0.5")}},
		{"leverage zero", Params{InitialBalance: d("1"), Leverage: 0, MaintenanceRatio: d("0.5")}},
		{"negative fee", Params{InitialBalance: d("1"), Leverage: 5, MakerFeeRate: d("-0.1"), MaintenanceRatio: d("0.5")}},
		{"no maintenance", Params{InitialBalance: d("1"), Leverage: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccount(tt.p)
			require.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestExecuteOpenAndCloseLong(t *testing.T) {
	acc := newTestAccount(t, 5)
	acc.UpdatePrice(d("100"))

	rec, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("2"), Price: d("100"), Timestamp: 1})
	require.NoError(t, err)
	assert.True(t, rec.Fee.Equal(d("0.04")))
	assert.True(t, acc.RealizedBalance().Equal(d("999.96")))
	assert.True(t, acc.Long().AvgEntryPrice.Equal(d("100")))

	_, err = acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("2"), Price: d("110"), Timestamp: 2})
	require.NoError(t, err)
	assert.True(t, acc.Long().Size.Equal(d("4")))
	assert.True(t, acc.Long().AvgEntryPrice.Equal(d("105")))

	acc.UpdatePrice(d("120"))
	assert.True(t, acc.UnrealizedPnL().Equal(d("60")))
	requireEquityInvariant(t, acc)

	rec, err = acc.Execute(Fill{Action: model.ActionCloseLong, Amount: d("1"), Price: d("120"), Timestamp: 3})
	require.NoError(t, err)
	assert.True(t, rec.RealizedPnL.Equal(d("15")))
	assert.True(t, rec.ResultingLong.Equal(d("3")))
	assert.True(t, acc.Long().AvgEntryPrice.Equal(d("105")), "closing keeps the average entry")
	requireEquityInvariant(t, acc)

	_, err = acc.Execute(Fill{Action: model.ActionCloseLong, Amount: d("3"), Price: d("120"), Timestamp: 4})
	require.NoError(t, err)
	assert.True(t, acc.Long().IsFlat())
	assert.True(t, acc.Long().AvgEntryPrice.IsZero())
	assert.Len(t, acc.Trades(), 4)
}

func TestExecuteShortRealizesInvertedPnL(t *testing.T) {
	acc := newTestAccount(t, 10)
	acc.UpdatePrice(d("2000"))
	_, err := acc.Execute(Fill{Action: model.ActionOpenShort, Amount: d("0.5"), Price: d("2000")})
	require.NoError(t, err)

	acc.UpdatePrice(d("1900"))
	assert.True(t, acc.UnrealizedPnL().Equal(d("50")))

	rec, err := acc.Execute(Fill{Action: model.ActionCloseShort, Amount: d("0.5"), Price: d("1900"), Taker: true})
	require.NoError(t, err)
	assert.True(t, rec.RealizedPnL.Equal(d("50")))
	assert.True(t, rec.Fee.Equal(d("0.475")))
	assert.True(t, rec.Taker)
	requireEquityInvariant(t, acc)
}

func TestHedgeModeLegsAreIndependent(t *testing.T) {
	acc := newTestAccount(t, 5)
	acc.UpdatePrice(d("100"))
	_, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("1"), Price: d("100")})
	require.NoError(t, err)
	_, err = acc.Execute(Fill{Action: model.ActionOpenShort, Amount: d("1"), Price: d("100")})
	require.NoError(t, err)

	assert.True(t, acc.Long().Size.Equal(d("1")))
	assert.True(t, acc.Short().Size.Equal(d("1")))
	assert.True(t, acc.NetPosition().IsZero())

	acc.UpdatePrice(d("150"))
	assert.True(t, acc.UnrealizedPnL().IsZero(), "a flat net position is price neutral")
}

func TestExecuteRejectsMisuse(t *testing.T) {
	acc := newTestAccount(t, 5)
	acc.UpdatePrice(d("100"))

	_, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: decimal.Zero, Price: d("100")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("-1"), Price: d("100")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("1"), Price: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = acc.Execute(Fill{Action: model.ActionCloseShort, Amount: d("1"), Price: d("100")})
	require.ErrorIs(t, err, ErrInsufficientClose)

	_, err = acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("1"), Price: d("100")})
	require.NoError(t, err)
	_, err = acc.Execute(Fill{Action: model.ActionCloseLong, Amount: d("1.0001"), Price: d("100")})
	require.ErrorIs(t, err, ErrInsufficientClose)
	assert.True(t, acc.Long().Size.Equal(d("1")), "a rejected close leaves the leg untouched")
	assert.Equal(t, 1, acc.TradeCount())
}

func TestFeeIndependentOfLeverage(t *testing.T) {
	for _, lev := range []int{5, 125} {
		acc := newTestAccount(t, lev)
		acc.UpdatePrice(d("2000"))
		rec, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("0.5"), Price: d("2000")})
		require.NoError(t, err)
		assert.True(t, rec.Fee.Equal(d("0.2")), "leverage %d: fee %s", lev, rec.Fee)
	}
}

func TestLiquidation(t *testing.T) {
	acc := newTestAccount(t, 20)
	acc.UpdatePrice(d("100"))
	_, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("100"), Price: d("100")})
	require.NoError(t, err)
	require.False(t, acc.IsLiquidated())
	assert.Equal(t, 20, acc.EffectiveLeverage())

	// 10000 notional at 20x with ratio 0.5 needs 250 of equity.
	acc.UpdatePrice(d("92.6"))
	require.False(t, acc.IsLiquidated(), "equity %s mm %s", acc.Equity(), acc.MaintenanceMargin())

	acc.UpdatePrice(d("92"))
	require.True(t, acc.IsLiquidated(), "equity %s mm %s", acc.Equity(), acc.MaintenanceMargin())
}

func TestFlatAccountLiquidatesOnlyBelowZero(t *testing.T) {
	acc := newTestAccount(t, 5)
	acc.UpdatePrice(d("100"))
	assert.True(t, acc.MaintenanceMargin().IsZero())
	assert.False(t, acc.IsLiquidated())
}

func TestTradesReturnsCopy(t *testing.T) {
	acc := newTestAccount(t, 5)
	acc.UpdatePrice(d("100"))
	_, err := acc.Execute(Fill{Action: model.ActionOpenLong, Amount: d("1"), Price: d("100")})
	require.NoError(t, err)

	trades := acc.Trades()
	trades[0].Amount = d("999")
	assert.True(t, acc.Trades()[0].Amount.Equal(d("1")))
}
