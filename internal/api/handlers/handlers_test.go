package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestResultStoreEvictsOldest(t *testing.T) {
	s := NewResultStore(2)
	first := s.Put(&backtest.Report{CandlesProcessed: 1})
	second := s.Put(&backtest.Report{CandlesProcessed: 2})
	third := s.Put(&backtest.Report{CandlesProcessed: 3})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(first)
	assert.False(t, ok)

	r, ok := s.Get(second)
	require.True(t, ok)
	assert.Equal(t, 2, r.CandlesProcessed)
	_, ok = s.Get(third)
	assert.True(t, ok)
	assert.NotEqual(t, second, third)
}

func TestResolveLayers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wide.yaml"), []byte("name: wide\ngrid:\n  bid_spread: 0.01\n  ask_spread: 0.01\n"), 0644))

	base := config.Default()
	base.Report.TradesCSV = "/srv/out/trades.csv"
	r := ConfigResolver{Base: base, PresetsDir: dir}

	cfg, err := r.Resolve("wide",
		json.RawMessage(`{"grid":{"ask_spread":0.02},"data":{"csv_dir":"/tmp/x"},"report":{"json":"/tmp/r.json"}}`),
		json.RawMessage(`{"rebate":{"use_fee_rebate":false}}`),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Grid.BidSpread)
	assert.Equal(t, 0.02, cfg.Grid.AskSpread)
	assert.False(t, cfg.Rebate.UseFeeRebate)
	assert.Equal(t, base.Data.CSVDir, cfg.Data.CSVDir)
	assert.Empty(t, cfg.Report.TradesCSV)
	assert.Empty(t, cfg.Report.JSON)
	assert.Equal(t, base.Account, cfg.Account)

	// Resolving must not mutate the base.
	assert.Equal(t, 0.002, r.Base.Grid.AskSpread)
}

func TestResolveErrors(t *testing.T) {
	r := ConfigResolver{Base: config.Default(), PresetsDir: t.TempDir()}

	_, err := r.Resolve("missing")
	assert.True(t, config.IsConfigError(err))

	_, err = r.Resolve("", json.RawMessage(`{"grid":{"bid_spread":2}}`))
	var ce *config.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "grid.bid_spread", ce.Field)
}

func TestWriteRunErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&config.ConfigError{Field: "account.leverage", Reason: "bad"}, http.StatusBadRequest, "INVALID_CONFIG"},
		{fmt.Errorf("%w: risk", backtest.ErrInvalidSetup), http.StatusBadRequest, "INVALID_CONFIG"},
		{fmt.Errorf("load candles: %w", data.ErrDataNotFound), http.StatusNotFound, "DATA_NOT_FOUND"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "BACKTEST_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			writeRunError(c, tt.err, nil)

			assert.Equal(t, tt.status, rec.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, models.StatusCompleted, runStatus(&backtest.Report{}))
	assert.Equal(t, models.StatusAborted, runStatus(&backtest.Report{Aborted: true}))
	assert.Equal(t, models.StatusLiquidated, runStatus(&backtest.Report{Liquidated: true, Aborted: true}))
}

func TestTimeoutHonoursShorterRequest(t *testing.T) {
	h := NewBacktestHandler(nil, ConfigResolver{}, nil, nil, nil)
	assert.Equal(t, DefaultRunTimeout, h.timeout(0))
	assert.Equal(t, "10s", h.timeout(10).String())
	assert.Equal(t, DefaultRunTimeout, h.timeout(1_000_000))
}
