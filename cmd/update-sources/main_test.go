package main

import (
	"testing"

	"grid-backtest/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferSymbol(t *testing.T) {
	assert.Equal(t, "ETHUSDT", inferSymbol("SYNTH-ETHUSDT"))
	assert.Equal(t, "BTCUSDT", inferSymbol("btcusdt_1m"))
	assert.Equal(t, "ETHUSDT", inferSymbol("ETHUSDT-15m"))
	assert.Equal(t, "SOL-PERP", inferSymbol("SOL-PERP"))
}

func TestMergeSources(t *testing.T) {
	seed := []data.Source{
		{ID: "ETHUSDT", Symbol: "ETH/USDT", Exchange: "okx", Kind: "csv"},
		{ID: "GONE", Kind: "csv"},
		{ID: "SYNTH-ETHUSDT", Kind: "synthetic"},
	}
	got := mergeSources(seed, []string{"ETHUSDT", "BTCUSDT"}, data.Source{Kind: "csv", Exchange: "binance-futures", Interval: "1m"})

	require.Len(t, got, 3)
	assert.Equal(t, "BTCUSDT", got[0].ID)
	assert.Equal(t, "binance-futures", got[0].Exchange)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)

	assert.Equal(t, "ETHUSDT", got[1].ID)
	assert.Equal(t, "okx", got[1].Exchange, "seed metadata kept")

	assert.Equal(t, "SYNTH-ETHUSDT", got[2].ID, "other kinds untouched")
}
