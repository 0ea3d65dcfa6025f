package backtest

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"grid-backtest/internal/exchange"
	"grid-backtest/internal/model"
	"grid-backtest/internal/rebate"
	"grid-backtest/internal/risk"
	"grid-backtest/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func candle(i int, o, h, l, c string) model.Candle {
	return model.Candle{
		OpenTime: t0 + int64(i)*60_000,
		Open:     d(o),
		High:     d(h),
		Low:      d(l),
		Close:    d(c),
		Volume:   d("1"),
	}
}

func testSetup() Setup {
	return Setup{
		Account: exchange.Params{
			InitialBalance:   d("1000"),
			Leverage:         5,
			MakerFeeRate:     d("0.0002"),
			TakerFeeRate:     d("0.0005"),
			MaintenanceRatio: d("0.5"),
		},
		Grid: strategy.GridConfig{
			BidSpread:             d("0.002"),
			AskSpread:             d("0.002"),
			PositionSizeRatio:     d("0.1"),
			MaxPositionValueRatio: d("3"),
			OrderRefreshTime:      time.Minute,
			MinOrderAmount:        d("0.1"),
			MaxOrderAmount:        d("1"),
		},
		Risk: risk.Config{
			Period:                     100,
			HighVolatilityThreshold:    d("0.01"),
			ExtremeVolatilityThreshold: d("0.02"),
			EmergencyCloseThreshold:    d("0.03"),
			MaxImbalanceRatio:          decimal.Zero,
			PositionBalanceRatio:       d("0.5"),
		},
		Rebate: rebate.Config{
			Enabled:    true,
			RebateRate: d("0.3"),
			FXRate:     d("1"),
			PayoutDay:  25,
		},
		EquitySampleInterval: 1,
	}
}

// scripted emits fixed orders at the first point of selected candles and
// otherwise leaves the book alone.
type scripted struct {
	orders map[int][]strategy.Order
	onCall func(ctx strategy.Context)
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) GenerateOrders(ctx strategy.Context) ([]strategy.Order, bool) {
	if s.onCall != nil {
		s.onCall(ctx)
	}
	if ctx.Point != 0 {
		return nil, false
	}
	o, ok := s.orders[ctx.Index]
	return o, ok
}

func withScript(setup Setup, s *scripted) Setup {
	setup.NewStrategy = func(strategy.AccountView, strategy.Filter) (strategy.Strategy, error) {
		return s, nil
	}
	return setup
}

func order(a model.Action, amount, price string) strategy.Order {
	return strategy.Order{Action: a, Amount: d(amount), Price: d(price)}
}

// wave is a deterministic oscillating market around 100.
func wave(n int) []model.Candle {
	out := make([]model.Candle, 0, n)
	prev := decimal.NewFromInt(100)
	for i := 0; i < n; i++ {
		c := decimal.NewFromFloat(100 + 2*math.Sin(float64(i)/5)).Round(2)
		hi := decimal.Max(prev, c).Add(d("0.3"))
		lo := decimal.Min(prev, c).Sub(d("0.3"))
		out = append(out, model.Candle{
			OpenTime: t0 + int64(i)*60_000,
			Open:     prev,
			High:     hi,
			Low:      lo,
			Close:    c,
			Volume:   d("10"),
		})
		prev = c
	}
	return out
}

func TestRunFlatMarketNoFills(t *testing.T) {
	candles := make([]model.Candle, 30)
	for i := range candles {
		candles[i] = candle(i, "2000", "2000", "2000", "2000")
	}
	rep, err := New(nil).Run(context.Background(), candles, testSetup())
	require.NoError(t, err)

	assert.Equal(t, 0, rep.TotalTrades)
	assert.Equal(t, 0.0, rep.TotalReturn)
	assert.True(t, rep.FinalEquity.Equal(d("1000")))
	assert.False(t, rep.Liquidated)
	assert.Equal(t, 30, rep.CandlesProcessed)
	assert.Len(t, rep.EquityCurve, 30)
	assert.Nil(t, rep.Rebates)
	assert.True(t, rep.TotalRebate.IsZero())
}

func TestRunBothSidesFillInOneCandle(t *testing.T) {
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "1", "90"), order(model.ActionOpenShort, "1", "110")},
	}}
	rep, err := New(nil).Run(context.Background(),
		[]model.Candle{candle(0, "100", "120", "80", "100")},
		withScript(testSetup(), s))
	require.NoError(t, err)

	require.Len(t, rep.Trades, 2)
	assert.Equal(t, model.ActionOpenShort, rep.Trades[0].Action, "high is visited before low")
	assert.True(t, rep.Trades[0].Price.Equal(d("110")))
	assert.Equal(t, model.ActionOpenLong, rep.Trades[1].Action)
	assert.True(t, rep.Trades[1].Price.Equal(d("90")))
	for _, tr := range rep.Trades {
		assert.False(t, tr.Taker)
		assert.Equal(t, model.ReasonGrid, tr.Reason)
	}
	assert.True(t, rep.FinalLong.Equal(d("1")))
	assert.True(t, rep.FinalShort.Equal(d("1")))
}

func TestRunCloseOrdersClampedToHeldLeg(t *testing.T) {
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "1", "100")},
		1: {order(model.ActionCloseLong, "5", "101"), order(model.ActionCloseShort, "1", "99")},
	}}
	candles := []model.Candle{
		candle(0, "100", "100.1", "99.9", "100"),
		candle(1, "100", "101", "98", "100"),
	}
	rep, err := New(nil).Run(context.Background(), candles, withScript(testSetup(), s))
	require.NoError(t, err)

	require.Len(t, rep.Trades, 2, "close_short on a flat leg is skipped")
	assert.Equal(t, model.ActionCloseLong, rep.Trades[1].Action)
	assert.True(t, rep.Trades[1].Amount.Equal(d("1")))
	assert.True(t, rep.Trades[1].RealizedPnL.Equal(d("1")))
	assert.Equal(t, 1.0, rep.WinRate)
}

func TestRunEmergencyForcesFullClose(t *testing.T) {
	setup := testSetup()
	setup.Risk.Period = 1
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "1", "99.9"), order(model.ActionOpenShort, "2", "100.1")},
	}}
	candles := []model.Candle{
		candle(0, "100", "100.2", "99.8", "100"),
		candle(1, "100", "110", "95", "100"),
	}
	rep, err := New(nil).Run(context.Background(), candles, withScript(setup, s))
	require.NoError(t, err)

	require.Len(t, rep.Trades, 4)
	closes := rep.Trades[2:]
	assert.Equal(t, model.ActionCloseLong, closes[0].Action)
	assert.True(t, closes[0].Amount.Equal(d("1")))
	assert.Equal(t, model.ActionCloseShort, closes[1].Action)
	assert.True(t, closes[1].Amount.Equal(d("2")))
	for _, tr := range closes {
		assert.True(t, tr.Taker)
		assert.Equal(t, model.ReasonRiskEmergency, tr.Reason)
		assert.True(t, tr.Price.Equal(d("100")))
		assert.Equal(t, candles[1].OpenTime, tr.Timestamp)
	}
	assert.True(t, rep.FinalLong.IsZero())
	assert.True(t, rep.FinalShort.IsZero())
}

func TestRunExtremeRebalances(t *testing.T) {
	setup := testSetup()
	setup.Risk.Period = 1
	setup.Risk.EmergencyCloseThreshold = d("0.5")
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "3", "100"), order(model.ActionOpenShort, "1", "100")},
	}}
	candles := []model.Candle{
		candle(0, "100", "100.2", "99.8", "100"),
		candle(1, "100", "101.5", "99", "100"),
	}
	rep, err := New(nil).Run(context.Background(), candles, withScript(setup, s))
	require.NoError(t, err)

	require.Len(t, rep.Trades, 3)
	last := rep.Trades[2]
	assert.Equal(t, model.ActionCloseLong, last.Action)
	assert.True(t, last.Amount.Equal(d("2")))
	assert.Equal(t, model.ReasonRiskExtreme, last.Reason)
	assert.True(t, last.Taker)
	assert.True(t, rep.FinalLong.Equal(rep.FinalShort))
}

func TestRunLiquidationStopsRun(t *testing.T) {
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "40", "100")},
	}}
	candles := []model.Candle{
		candle(0, "100", "100", "99", "100"),
		candle(1, "100", "100", "80", "90"),
		candle(2, "90", "95", "85", "90"),
	}
	rep, err := New(nil).Run(context.Background(), candles, withScript(testSetup(), s))
	require.NoError(t, err)

	assert.True(t, rep.Liquidated)
	require.NotNil(t, rep.LiquidationTimestamp)
	assert.Equal(t, candles[1].OpenTime, *rep.LiquidationTimestamp)
	assert.Equal(t, 2, rep.CandlesProcessed)
	require.Len(t, rep.EquityCurve, 2, "sampled at liquidation, not after")
	assert.Equal(t, candles[0].OpenTime, rep.EquityCurve[0].Timestamp)
	assert.Equal(t, candles[1].OpenTime, rep.EquityCurve[1].Timestamp)
	assert.True(t, rep.EquityCurve[1].Equity.Equal(rep.FinalEquity))
	assert.Greater(t, rep.MaxDrawdown, 0.5)
}

func TestRunLiquidationDrawdownBetweenSamples(t *testing.T) {
	s := &scripted{orders: map[int][]strategy.Order{
		0: {order(model.ActionOpenLong, "40", "100")},
	}}
	candles := []model.Candle{
		candle(0, "100", "100", "99", "100"),
		candle(1, "100", "100", "80", "90"),
	}
	setup := withScript(testSetup(), s)
	setup.EquitySampleInterval = 60

	rep, err := New(nil).Run(context.Background(), candles, setup)
	require.NoError(t, err)

	require.True(t, rep.Liquidated)
	require.Len(t, rep.EquityCurve, 1)
	assert.Equal(t, *rep.LiquidationTimestamp, rep.EquityCurve[0].Timestamp)
	assert.Less(t, rep.TotalReturn, 0.0)
	assert.InDelta(t, -rep.TotalReturn, rep.MaxDrawdown, 1e-9)
}

func TestRunAbortReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &scripted{
		orders: map[int][]strategy.Order{},
		onCall: func(c strategy.Context) {
			if c.Index == 2 {
				cancel()
			}
		},
	}
	rep, err := New(nil).Run(ctx, wave(10), withScript(testSetup(), s))
	require.NoError(t, err)

	assert.True(t, rep.Aborted)
	assert.Equal(t, 3, rep.CandlesProcessed)
	require.NotEmpty(t, rep.EquityCurve)
	assert.Equal(t, t0+2*60_000, rep.EquityCurve[len(rep.EquityCurve)-1].Timestamp)
}

func TestRunEquityInvariantPerCandle(t *testing.T) {
	setup := testSetup()
	setup.Account.InitialBalance = d("10000")
	setup.Account.Leverage = 10
	candles := wave(300)

	rep, err := New(nil).Run(context.Background(), candles, setup)
	require.NoError(t, err)
	require.NotZero(t, rep.TotalTrades, "the wave should cross the grid")
	require.Len(t, rep.EquityCurve, len(candles))

	closes := make(map[int64]decimal.Decimal, len(candles))
	for _, c := range candles {
		closes[c.OpenTime] = c.Close
	}

	var long, short model.Position
	cash := setup.Account.InitialBalance
	next := 0
	for _, p := range rep.EquityCurve {
		for ; next < len(rep.Trades) && rep.Trades[next].Timestamp <= p.Timestamp; next++ {
			tr := rep.Trades[next]
			leg := &long
			if tr.Action.Side() == model.SideShort {
				leg = &short
			}
			if tr.Action.IsOpen() {
				size := leg.Size.Add(tr.Amount)
				leg.AvgEntryPrice = model.Quo(leg.Size.Mul(leg.AvgEntryPrice).Add(tr.Amount.Mul(tr.Price)), size)
				leg.Size = size
			} else {
				leg.Size = leg.Size.Sub(tr.Amount)
				if leg.Size.IsZero() {
					leg.AvgEntryPrice = decimal.Zero
				}
			}
			cash = cash.Add(tr.RealizedPnL).Sub(tr.Fee)
		}
		mark := closes[p.Timestamp]
		unrealized := long.Size.Mul(mark.Sub(long.AvgEntryPrice)).Add(short.Size.Mul(short.AvgEntryPrice.Sub(mark)))
		want := cash.Add(unrealized)
		require.True(t, p.Equity.Equal(want), "candle %d: equity %s, want %s", p.Timestamp, p.Equity, want)
	}
}

func TestRunDeterministic(t *testing.T) {
	setup := testSetup()
	setup.Account.InitialBalance = d("10000")
	setup.Grid.UseDynamicOrderSize = true
	candles := wave(200)

	a, err := New(nil).Run(context.Background(), candles, setup)
	require.NoError(t, err)
	b, err := New(nil).Run(context.Background(), candles, setup)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestRunFeesIndependentOfLeverage(t *testing.T) {
	s := func() *scripted {
		return &scripted{orders: map[int][]strategy.Order{
			0: {order(model.ActionOpenLong, "10", "100")},
		}}
	}
	candles := []model.Candle{candle(0, "100", "100", "100", "100")}

	low := testSetup()
	high := testSetup()
	high.Account.Leverage = 125

	a, err := New(nil).Run(context.Background(), candles, withScript(low, s()))
	require.NoError(t, err)
	b, err := New(nil).Run(context.Background(), candles, withScript(high, s()))
	require.NoError(t, err)

	assert.True(t, a.TotalFees.Equal(d("0.2")))
	assert.True(t, a.TotalFees.Equal(b.TotalFees))
	assert.True(t, a.TotalRebate.Equal(b.TotalRebate))
}

func TestRunRejectsBadInput(t *testing.T) {
	e := New(nil)

	setup := testSetup()
	setup.EquitySampleInterval = 0
	_, err := e.Run(context.Background(), wave(5), setup)
	assert.ErrorIs(t, err, ErrInvalidSetup)

	setup = testSetup()
	setup.Account.Leverage = 200
	_, err = e.Run(context.Background(), wave(5), setup)
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, err = e.Run(context.Background(), nil, testSetup())
	assert.Error(t, err)

	bad := []model.Candle{candle(0, "100", "90", "110", "100")}
	_, err = e.Run(context.Background(), bad, testSetup())
	assert.Error(t, err)
}
