package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grid-backtest/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New(nil)
	m.ObserveRun("completed", 12, 200*time.Millisecond)
	m.ObserveRun("liquidated", 3, time.Second)
	m.ObserveRun("error", 0, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `gridbt_runs_total{status="completed"} 1`)
	assert.Contains(t, body, `gridbt_runs_total{status="error"} 1`)
	assert.Contains(t, body, "gridbt_trades_total 15")
	assert.Contains(t, body, "gridbt_liquidations_total 1")
	assert.Contains(t, body, "gridbt_run_duration_seconds_count 3")
	assert.NotContains(t, body, "gridbt_cache_hits_total")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRun("completed", 1, time.Second) })
}

func TestHandlerExposesCacheCounters(t *testing.T) {
	m := New(func() data.CacheStats { return data.CacheStats{Hits: 4, Misses: 2} })

	body := scrape(t, m)
	assert.Contains(t, body, "gridbt_cache_hits_total 4")
	assert.Contains(t, body, "gridbt_cache_misses_total 2")
}
