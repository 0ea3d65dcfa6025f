package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxLeverageForNotional(t *testing.T) {
	tests := []struct {
		notional string
		want     int
	}{
		{"0", 125},
		{"50000", 125},
		{"50000.01", 100},
		{"250000", 100},
		{"250001", 50},
		{"1000000", 50},
		{"1000000.5", 20},
		{"5000000", 20},
		{"5000001", 10},
		{"20000000", 10},
		{"20000000.0001", 5},
		{"1000000000", 5},
		{"-60000", 100},
	}
	for _, tt := range tests {
		t.Run(tt.notional, func(t *testing.T) {
			got := MaxLeverageForNotional(decimal.RequireFromString(tt.notional))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLadderStrictlyDecreasesAcrossBoundaries(t *testing.T) {
	eps := decimal.RequireFromString("0.01")
	prev := DefaultLadder.MaxLeverageForNotional(decimal.Zero)
	for _, tier := range DefaultLadder.Tiers {
		at := DefaultLadder.MaxLeverageForNotional(tier.MaxNotional)
		above := DefaultLadder.MaxLeverageForNotional(tier.MaxNotional.Add(eps))
		require.Equal(t, prev, at, "boundary %s belongs to the lower tier", tier.MaxNotional)
		require.Less(t, above, at, "crossing %s must lower leverage", tier.MaxNotional)
		prev = above
	}
}

func TestEffectiveLeverageNeverExceedsConfigured(t *testing.T) {
	notionals := []string{"0", "10000", "60000", "300000", "2000000", "9000000", "50000000"}
	for _, configured := range []int{1, 5, 20, 75, 125} {
		for _, n := range notionals {
			eff := DefaultLadder.EffectiveLeverage(configured, decimal.RequireFromString(n))
			require.LessOrEqual(t, eff, configured)
			require.LessOrEqual(t, eff, MaxLeverageForNotional(decimal.RequireFromString(n)))
		}
	}
}
