package exchange

import "github.com/shopspring/decimal"

// Tier caps leverage for positions whose notional is at most MaxNotional.
type Tier struct {
	MaxNotional decimal.Decimal
	MaxLeverage int
}

// Ladder maps position notional to the exchange's maximum leverage.
// Tiers must be sorted by ascending MaxNotional; notionals above the last tier
// get Floor.
type Ladder struct {
	Tiers []Tier
	Floor int
}

// DefaultLadder is the perpetual-futures margin schedule the engine simulates.
var DefaultLadder = Ladder{
	Tiers: []Tier{
		{MaxNotional: decimal.NewFromInt(50_000), MaxLeverage: 125},
		{MaxNotional: decimal.NewFromInt(250_000), MaxLeverage: 100},
		{MaxNotional: decimal.NewFromInt(1_000_000), MaxLeverage: 50},
		{MaxNotional: decimal.NewFromInt(5_000_000), MaxLeverage: 20},
		{MaxNotional: decimal.NewFromInt(20_000_000), MaxLeverage: 10},
	},
	Floor: 5,
}

// MaxLeverageForNotional returns the leverage cap for |notional|.
func (l Ladder) MaxLeverageForNotional(notional decimal.Decimal) int {
	n := notional.Abs()
	for _, t := range l.Tiers {
		if n.LessThanOrEqual(t.MaxNotional) {
			return t.MaxLeverage
		}
	}
	return l.Floor
}

// MaxLeverageForNotional looks notional up in DefaultLadder.
func MaxLeverageForNotional(notional decimal.Decimal) int {
	return DefaultLadder.MaxLeverageForNotional(notional)
}

// EffectiveLeverage is min(configured, ladder cap for notional).
func (l Ladder) EffectiveLeverage(configured int, notional decimal.Decimal) int {
	limit := l.MaxLeverageForNotional(notional)
	if configured < limit {
		return configured
	}
	return limit
}
