package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/api/metrics"
	"grid-backtest/internal/api/models"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/runner"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRunTimeout   = 5 * time.Minute
	DefaultCompareLimit = 4
)

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	runner   *runner.Runner
	resolver ConfigResolver
	results  *ResultStore
	metrics  *metrics.Metrics
	log      *zap.Logger

	// RunTimeout bounds a single run unless the request asks for less.
	RunTimeout time.Duration
	// CompareLimit is the number of variations run at once.
	CompareLimit int
}

// NewBacktestHandler creates a new backtest handler. m and log may be nil.
func NewBacktestHandler(r *runner.Runner, resolver ConfigResolver, results *ResultStore, m *metrics.Metrics, log *zap.Logger) *BacktestHandler {
	if results == nil {
		results = NewResultStore(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BacktestHandler{
		runner:       r,
		resolver:     resolver,
		results:      results,
		metrics:      m,
		log:          log,
		RunTimeout:   DefaultRunTimeout,
		CompareLimit: DefaultCompareLimit,
	}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	cfg, err := h.resolver.Resolve(req.Preset, req.Config)
	if err != nil {
		writeRunError(c, err, nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout(req.Options.TimeoutSeconds))
	defer cancel()

	report, err := h.run(ctx, cfg)
	if err != nil {
		writeRunError(c, err, nil)
		return
	}
	id := h.results.Put(report)

	resp := models.BacktestResponse{
		ID:      id,
		Status:  runStatus(report),
		Summary: buildSummary(report),
	}
	if req.Options.IncludeTrades {
		resp.Trades = report.Trades
	}
	if req.Options.IncludeEquity {
		resp.EquityCurve = report.EquityCurve
	}
	c.JSON(http.StatusOK, resp)
}

// GetTrades handles GET /api/v1/backtest/:id/trades
func (h *BacktestHandler) GetTrades(c *gin.Context) {
	id := c.Param("id")
	report, ok := h.results.Get(id)
	if !ok {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no backtest with id %q", id), nil)
		return
	}
	c.JSON(http.StatusOK, models.TradesResponse{ID: id, Count: len(report.Trades), Trades: report.Trades})
}

// GetEquity handles GET /api/v1/backtest/:id/equity
func (h *BacktestHandler) GetEquity(c *gin.Context) {
	id := c.Param("id")
	report, ok := h.results.Get(id)
	if !ok {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no backtest with id %q", id), nil)
		return
	}
	c.JSON(http.StatusOK, models.EquityResponse{ID: id, Count: len(report.EquityCurve), EquityCurve: report.EquityCurve})
}

// CompareBacktests handles POST /api/v1/backtest/compare. Every variation is
// resolved and validated before any of them runs.
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	var req models.CompareBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	switch req.RankBy {
	case "":
		req.RankBy = "sharpe"
	case "sharpe", "return":
	default:
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", `rank_by must be "sharpe" or "return"`, nil)
		return
	}

	configs := make([]*config.Config, len(req.Variations))
	seen := make(map[string]bool, len(req.Variations))
	for i, v := range req.Variations {
		if seen[v.Name] {
			abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("duplicate variation name %q", v.Name), nil)
			return
		}
		seen[v.Name] = true

		cfg, err := h.resolver.Resolve(req.Preset, req.BaseConfig, v.Config)
		if err != nil {
			writeRunError(c, err, map[string]interface{}{"variation": v.Name})
			return
		}
		configs[i] = cfg
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout(0))
	defer cancel()

	reports := make([]*backtest.Report, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.compareLimit())
	for i := range configs {
		i := i
		g.Go(func() error {
			report, err := h.run(gctx, configs[i])
			if err != nil {
				return fmt.Errorf("variation %s: %w", req.Variations[i].Name, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeRunError(c, err, nil)
		return
	}

	runs := make([]analysis.RankedRun, len(reports))
	byName := make(map[string]int, len(reports))
	for i, r := range reports {
		name := req.Variations[i].Name
		runs[i] = analysis.RankedRun{
			Label:   name,
			Metrics: analysis.Summarize(r.InitialBalance, r.FinalEquity, r.Trades, r.EquityCurve),
		}
		byName[name] = i
	}
	if req.RankBy == "return" {
		runs = analysis.RankByReturn(runs)
	} else {
		runs = analysis.RankBySharpe(runs)
	}

	comparison := make([]models.ComparisonResult, len(runs))
	for rank, run := range runs {
		report := reports[byName[run.Label]]
		comparison[rank] = models.ComparisonResult{
			Rank:    rank + 1,
			Name:    run.Label,
			ID:      h.results.Put(report),
			Status:  runStatus(report),
			Summary: buildSummary(report),
		}
	}
	c.JSON(http.StatusOK, models.CompareBacktestResponse{RankBy: req.RankBy, Comparison: comparison})
}

func (h *BacktestHandler) run(ctx context.Context, cfg *config.Config) (*backtest.Report, error) {
	started := time.Now()
	report, err := h.runner.Run(ctx, cfg)
	if err != nil {
		h.metrics.ObserveRun("error", 0, time.Since(started))
		h.log.Warn("backtest failed", zap.String("symbol", cfg.Data.Symbol), zap.Error(err))
		return nil, err
	}
	h.metrics.ObserveRun(runStatus(report), report.TotalTrades, time.Since(started))
	return report, nil
}

func (h *BacktestHandler) timeout(seconds int) time.Duration {
	d := h.RunTimeout
	if d <= 0 {
		d = DefaultRunTimeout
	}
	if seconds > 0 && time.Duration(seconds)*time.Second < d {
		d = time.Duration(seconds) * time.Second
	}
	return d
}

func (h *BacktestHandler) compareLimit() int {
	if h.CompareLimit <= 0 {
		return DefaultCompareLimit
	}
	return h.CompareLimit
}

func runStatus(r *backtest.Report) string {
	switch {
	case r.Liquidated:
		return models.StatusLiquidated
	case r.Aborted:
		return models.StatusAborted
	default:
		return models.StatusCompleted
	}
}

// buildSummary creates a summary from a report
func buildSummary(r *backtest.Report) models.BacktestSummary {
	s := models.BacktestSummary{
		InitialBalance:       r.InitialBalance,
		FinalEquity:          r.FinalEquity,
		NetProfit:            r.NetProfit(),
		TotalReturn:          r.TotalReturn,
		MaxDrawdown:          r.MaxDrawdown,
		SharpeRatio:          r.SharpeRatio,
		WinRate:              r.WinRate,
		TotalTrades:          r.TotalTrades,
		TotalFees:            r.TotalFees,
		TotalRebate:          r.TotalRebate,
		Rebates:              r.Rebates,
		Liquidated:           r.Liquidated,
		LiquidationTimestamp: r.LiquidationTimestamp,
		CandlesProcessed:     r.CandlesProcessed,
	}
	if n := len(r.EquityCurve); n > 0 {
		s.BacktestWindow = &models.TimeWindow{
			Start: r.EquityCurve[0].Time(),
			End:   r.EquityCurve[n-1].Time(),
		}
	}
	return s
}
