// Package api wires the HTTP handlers, middleware and metrics into a gin
// router.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"grid-backtest/internal/api/handlers"
	"grid-backtest/internal/api/metrics"
	"grid-backtest/internal/api/middleware"
	"grid-backtest/internal/config"
	"grid-backtest/internal/runner"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures NewRouter. Zero values fall back to defaults.
type Options struct {
	Base         config.Config
	PresetsDir   string
	SourcesFile  string
	StaticDir    string
	CORSOrigins  string
	ResultsLimit int
	CompareLimit int
}

// Server owns the pieces shared across requests.
type Server struct {
	Router  *gin.Engine
	Runner  *runner.Runner
	Results *handlers.ResultStore
	Metrics *metrics.Metrics
}

// NewRouter builds the API. The caller closes Runner.
func NewRouter(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	run := runner.New(log)
	m := metrics.New(run.Stats)
	results := handlers.NewResultStore(opts.ResultsLimit)

	router := gin.New()
	router.Use(middleware.CORS(opts.CORSOrigins))
	router.Use(middleware.Logger(log.Named("http")))
	router.Use(middleware.ErrorHandler(log))

	presetHandler := handlers.NewPresetHandler(opts.PresetsDir, log)
	backtestHandler := handlers.NewBacktestHandler(run,
		handlers.ConfigResolver{Base: opts.Base, PresetsDir: presetHandler.Dir()},
		results, m, log)
	if opts.CompareLimit > 0 {
		backtestHandler.CompareLimit = opts.CompareLimit
	}
	parameterHandler := handlers.NewParameterHandler(opts.Base)
	sourceHandler := handlers.NewSourceHandler(run, opts.Base.Data, opts.SourcesFile, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.GET("/backtest/:id/trades", backtestHandler.GetTrades)
		api.GET("/backtest/:id/equity", backtestHandler.GetEquity)
		api.POST("/backtest/compare", backtestHandler.CompareBacktests)

		api.GET("/presets", presetHandler.ListPresets)
		api.GET("/parameters", parameterHandler.ListParameters)

		api.GET("/sources", sourceHandler.ListSources)
		api.GET("/sources/:id/profile", sourceHandler.GetProfile)
		api.GET("/rank", sourceHandler.RankSources)
	}

	serveStatic(router, opts.StaticDir, log)

	return &Server{Router: router, Runner: run, Results: results, Metrics: m}
}

// serveStatic serves a built web UI from dir, with index.html for any
// non-API route.
func serveStatic(router *gin.Engine, dir string, log *zap.Logger) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Info("static directory not found, skipping static file serving", zap.String("dir", dir))
		return
	}
	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
	log.Info("serving static files", zap.String("dir", dir))
}
