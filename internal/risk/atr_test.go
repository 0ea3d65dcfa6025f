package risk

import (
	"testing"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type legs struct{ long, short decimal.Decimal }

func (l *legs) LongSize() decimal.Decimal  { return l.long }
func (l *legs) ShortSize() decimal.Decimal { return l.short }

func testConfig(period int) Config {
	return Config{
		Period:                     period,
		HighVolatilityThreshold:    d("0.01"),
		ExtremeVolatilityThreshold: d("0.02"),
		EmergencyCloseThreshold:    d("0.03"),
		MaxImbalanceRatio:          decimal.Zero,
		PositionBalanceRatio:       d("0.5"),
	}
}

// bar builds a candle closing at 100 with the given high-low range.
func bar(ts int64, rng string) model.Candle {
	half := d(rng).Div(decimal.NewFromInt(2))
	c := d("100")
	return model.Candle{OpenTime: ts, Open: c, High: c.Add(half), Low: c.Sub(half), Close: c}
}

func TestConfigValidate(t *testing.T) {
	ok := testConfig(14)
	require.NoError(t, ok.Validate())

	bad := []func(c *Config){
		func(c *Config) { c.Period = 0 },
		func(c *Config) { c.HighVolatilityThreshold = decimal.Zero },
		func(c *Config) { c.HighVolatilityThreshold = d("0.05") },
		func(c *Config) { c.EmergencyCloseThreshold = d("0.015") },
		func(c *Config) { c.MaxImbalanceRatio = d("1") },
		func(c *Config) { c.PositionBalanceRatio = decimal.Zero },
		func(c *Config) { c.PositionBalanceRatio = d("1") },
	}
	for i, mutate := range bad {
		c := testConfig(14)
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestTrueRange(t *testing.T) {
	c := model.Candle{High: d("110"), Low: d("100"), Close: d("105")}
	assert.True(t, TrueRange(c, decimal.Zero, false).Equal(d("10")))
	assert.True(t, TrueRange(c, d("90"), true).Equal(d("20")), "gap up uses low-prevClose")
	assert.True(t, TrueRange(c, d("125"), true).Equal(d("25")), "gap down uses high-prevClose")
	assert.True(t, TrueRange(c, d("105"), true).Equal(d("10")))
}

func TestWarmupStaysNormal(t *testing.T) {
	m, err := NewVolatilityRiskManager(testConfig(3), &legs{})
	require.NoError(t, err)

	a := m.Update(bar(1, "10"))
	assert.False(t, a.Ready)
	assert.Equal(t, StateNormal, a.State)
	a = m.Update(bar(2, "10"))
	assert.False(t, a.Ready)
	assert.Equal(t, StateNormal, a.State)

	a = m.Update(bar(3, "10"))
	assert.True(t, a.Ready)
	assert.InDelta(t, 0.1, a.ATRPct, 1e-12)
	assert.Equal(t, StateExtreme, a.State)
	assert.True(t, a.Emergency)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		rng       string
		state     State
		emergency bool
	}{
		{"0.5", StateNormal, false},
		{"1", StateBalancing, false},
		{"1.5", StateBalancing, false},
		{"2", StateExtreme, false},
		{"2.9", StateExtreme, false},
		{"3", StateExtreme, true},
		{"0.2", StateNormal, false},
	}
	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			m, err := NewVolatilityRiskManager(testConfig(1), &legs{})
			require.NoError(t, err)
			a := m.Update(bar(1, tt.rng))
			assert.Equal(t, tt.state, a.State)
			assert.Equal(t, tt.emergency, a.Emergency)
		})
	}
}

func TestRollingWindowDropsOldSamples(t *testing.T) {
	m, err := NewVolatilityRiskManager(testConfig(2), &legs{})
	require.NoError(t, err)
	m.Update(bar(1, "4"))
	m.Update(bar(2, "2"))
	assert.True(t, m.ATRPct().Equal(d("0.03")))
	m.Update(bar(3, "0"))
	assert.True(t, m.ATRPct().Equal(d("0.01")), "got %s", m.ATRPct())
}

func TestStateNeverRegressesUnderRisingTrueRange(t *testing.T) {
	m, err := NewVolatilityRiskManager(testConfig(5), &legs{})
	require.NoError(t, err)

	prev := StateNormal
	prevEmergency := false
	for i := 1; i <= 60; i++ {
		rng := decimal.NewFromInt(int64(i)).Mul(d("0.1"))
		a := m.Update(bar(int64(i), rng.String()))
		require.GreaterOrEqual(t, a.State, prev, "candle %d regressed from %s to %s", i, prev, a.State)
		if prevEmergency {
			require.True(t, a.Emergency, "candle %d cleared emergency", i)
		}
		prev, prevEmergency = a.State, a.Emergency
	}
	assert.Equal(t, StateExtreme, prev)
	assert.True(t, prevEmergency)
}

func TestShouldFilterOnlyOverweightOpensWhileBalancing(t *testing.T) {
	pos := &legs{long: d("2"), short: d("1")}
	m, err := NewVolatilityRiskManager(testConfig(1), pos)
	require.NoError(t, err)

	m.Update(bar(1, "0.5"))
	require.Equal(t, StateNormal, m.State())
	assert.False(t, m.ShouldFilter(model.ActionOpenLong))

	m.Update(bar(2, "1.2"))
	require.Equal(t, StateBalancing, m.State())
	assert.True(t, m.ShouldFilter(model.ActionOpenLong))
	assert.False(t, m.ShouldFilter(model.ActionOpenShort))
	assert.False(t, m.ShouldFilter(model.ActionCloseLong))
	assert.False(t, m.ShouldFilter(model.ActionCloseShort))

	pos.long, pos.short = d("1"), d("3")
	assert.True(t, m.ShouldFilter(model.ActionOpenShort))
	assert.False(t, m.ShouldFilter(model.ActionOpenLong))

	pos.long, pos.short = d("1"), d("1")
	assert.False(t, m.ShouldFilter(model.ActionOpenShort))
	assert.False(t, m.ShouldFilter(model.ActionOpenLong))

	m.Update(bar(3, "2.5"))
	require.Equal(t, StateExtreme, m.State())
	pos.long = d("5")
	assert.False(t, m.ShouldFilter(model.ActionOpenLong), "only the balancing state filters")
}

func TestShouldFilterRespectsImbalanceTolerance(t *testing.T) {
	cfg := testConfig(1)
	cfg.MaxImbalanceRatio = d("0.25")
	pos := &legs{long: d("1.2"), short: d("1")}
	m, err := NewVolatilityRiskManager(cfg, pos)
	require.NoError(t, err)
	m.Update(bar(1, "1.2"))

	assert.False(t, m.ShouldFilter(model.ActionOpenLong), "0.2/2.2 is within tolerance")
	pos.long = d("3")
	assert.True(t, m.ShouldFilter(model.ActionOpenLong))
}

func TestRebalanceTarget(t *testing.T) {
	pos := &legs{long: d("3"), short: d("1")}
	m, err := NewVolatilityRiskManager(testConfig(1), pos)
	require.NoError(t, err)

	action, amount, ok := m.RebalanceTarget()
	require.True(t, ok)
	assert.Equal(t, model.ActionCloseLong, action)
	assert.True(t, amount.Equal(d("2")))

	pos.long, pos.short = d("1"), d("4")
	action, amount, ok = m.RebalanceTarget()
	require.True(t, ok)
	assert.Equal(t, model.ActionCloseShort, action)
	assert.True(t, amount.Equal(d("3")))

	pos.long, pos.short = d("2"), d("2")
	_, _, ok = m.RebalanceTarget()
	assert.False(t, ok)
}
