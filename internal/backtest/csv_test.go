package backtest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"grid-backtest/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTradesCSV(t *testing.T) {
	trades := []model.TradeRecord{{
		Timestamp:       t0,
		Action:          model.ActionOpenShort,
		Amount:          d("0.5"),
		Price:           d("2000"),
		Fee:             d("0.2"),
		Leverage:        5,
		RealizedPnL:     d("0"),
		ResultingShort:  d("0.5"),
		ResultingEquity: d("999.8"),
		Reason:          model.ReasonGrid,
	}}
	var buf bytes.Buffer
	require.NoError(t, EncodeTradesCSV(&buf, trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "timestamp", rows[0][0])
	assert.Equal(t, []string{
		"1709251200000", "2024-03-01T00:00:00Z", "open_short", "0.5", "2000", "0.2",
		"false", "5", "0", "0", "0.5", "999.8", "grid",
	}, rows[1])
}

func TestWriteEquityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	curve := []model.EquityPoint{
		{Timestamp: t0, Equity: d("1000")},
		{Timestamp: t0 + 60_000, Equity: d("1000.5")},
	}
	require.NoError(t, WriteEquityCSV(path, curve))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,time,equity\n"+
		"1709251200000,2024-03-01T00:00:00Z,1000\n"+
		"1709251260000,2024-03-01T00:01:00Z,1000.5\n", string(raw))
}
