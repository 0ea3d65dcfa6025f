package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"grid-backtest/internal/api"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	base, err := baseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(base.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	compareLimit, _ := strconv.Atoi(os.Getenv("COMPARE_PARALLELISM"))

	srv := api.NewRouter(api.Options{
		Base:         *base,
		SourcesFile:  data.GetDefaultSourcesPath(),
		StaticDir:    staticDir,
		CORSOrigins:  os.Getenv("CORS_ORIGINS"),
		CompareLimit: compareLimit,
	}, log)
	defer srv.Runner.Close()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting API server",
			zap.String("addr", httpServer.Addr),
			zap.String("data_source", base.Data.Source),
			zap.String("csv_dir", base.Data.CSVDir),
			zap.String("cache_dir", base.Data.CacheDir),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// baseConfig is the config every request starts from: CONFIG_FILE (or
// $CONFIG_DIR/backtest.yaml when present), then environment overrides.
func baseConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if dir := os.Getenv("CONFIG_DIR"); dir != "" {
			candidate := filepath.Join(dir, "backtest.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadUnchecked(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("CSV_DIR"); v != "" {
		cfg.Data.CSVDir = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Data.PostgresDSN = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Data.CacheDir = v
	}
	// The server never writes report files.
	cfg.Report.TradesCSV, cfg.Report.EquityCSV, cfg.Report.JSON = "", "", ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
