// Package metrics exposes Prometheus metrics for the backtest API:
//
//	gridbt_runs_total{status}          runs by outcome (completed|liquidated|aborted|error)
//	gridbt_run_duration_seconds        wall time of one run
//	gridbt_trades_total                fills across all runs
//	gridbt_liquidations_total          liquidated runs
//	gridbt_cache_hits_total            preprocess cache hits
//	gridbt_cache_misses_total          preprocess cache misses
//
// Metrics live in their own registry so tests and multiple servers in one
// process don't collide on the default one.
package metrics

import (
	"net/http"
	"time"

	"grid-backtest/internal/data"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridbt"

type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	trades       prometheus.Counter
	liquidations prometheus.Counter
}

// New registers the run metrics plus cache counters read from stats at
// scrape time. stats may be nil.
func New(stats func() data.CacheStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Backtest runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of one backtest run in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		trades: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Fills executed across all runs",
			},
		),
		liquidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "liquidations_total",
				Help:      "Runs that ended in liquidation",
			},
		),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.trades, m.liquidations,
		collectors.NewGoCollector(),
	)

	if stats != nil {
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Preprocess cache hits",
			}, func() float64 { return float64(stats().Hits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Preprocess cache misses",
			}, func() float64 { return float64(stats().Misses) }),
		)
	}
	return m
}

// ObserveRun records one finished run. status is one of the models status
// strings or "error"; trades is the fill count.
func (m *Metrics) ObserveRun(status string, trades int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.trades.Add(float64(trades))
	if status == "liquidated" {
		m.liquidations.Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
