package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logging"
	"grid-backtest/internal/runner"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "backtest":
		err = cmdBacktest(ctx, os.Args[2:])
	case "sweep":
		err = cmdSweep(ctx, os.Args[2:])
	case "rank":
		err = cmdRank(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if config.IsConfigError(err) || errors.Is(err, backtest.ErrInvalidSetup) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli backtest --config configs/backtest.yaml [--symbol ETHUSDT --start 2024-01-01 --end 2024-01-31]")
	fmt.Println("  cli sweep    --config configs/backtest.yaml --spreads 0.001,0.002,0.005 --leverage 5,10 [--parallel 4]")
	fmt.Println("  cli rank     --config configs/backtest.yaml [--sources ETHUSDT,BTCUSDT]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - backtest writes the trades/equity CSVs and JSON report named in the config's report section")
	fmt.Println("  - sweep ranks every spread x leverage combination by Sharpe ratio")
	fmt.Println("  - rank orders candle sources by mean candle range over the configured dates")
}

// commonFlags are the overrides every subcommand accepts on top of --config.
type commonFlags struct {
	cfgPath string
	symbol  string
	start   string
	end     string
	source  string
	timeout time.Duration
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.cfgPath, "config", "", "Path to YAML config (defaults are used when empty)")
	fs.StringVar(&f.symbol, "symbol", "", "Override data.symbol")
	fs.StringVar(&f.start, "start", "", "Override data.start_date (YYYY-MM-DD)")
	fs.StringVar(&f.end, "end", "", "Override data.end_date (YYYY-MM-DD)")
	fs.StringVar(&f.source, "source", "", "Override data.source (csv, postgres, synthetic)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Abort runs after this long (0 = no limit)")
}

// load reads the config file, applies flag and environment overrides and
// validates the result.
func (f *commonFlags) load() (*config.Config, error) {
	var cfg *config.Config
	if f.cfgPath == "" {
		d := config.Default()
		cfg = &d
	} else {
		var err error
		if cfg, err = config.LoadUnchecked(f.cfgPath); err != nil {
			return nil, err
		}
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" && cfg.Data.PostgresDSN == "" {
		cfg.Data.PostgresDSN = dsn
	}
	override := config.Config{Data: config.DataConfig{
		Source:    f.source,
		Symbol:    f.symbol,
		StartDate: f.start,
		EndDate:   f.end,
	}}
	merged := config.Merge(*cfg, override)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (f *commonFlags) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging)
}

func cmdBacktest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	tradesPath := fs.String("trades", "", "Override report.trades_csv")
	equityPath := fs.String("equity", "", "Override report.equity_csv")
	jsonPath := fs.String("json", "", "Override report.json")
	_ = fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *tradesPath != "" {
		cfg.Report.TradesCSV = *tradesPath
	}
	if *equityPath != "" {
		cfg.Report.EquityCSV = *equityPath
	}
	if *jsonPath != "" {
		cfg.Report.JSON = *jsonPath
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	run := runner.New(log)
	defer run.Close()

	ctx, cancel := common.context(ctx)
	defer cancel()

	report, err := run.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if err := runner.WriteOutputs(report, cfg.Report); err != nil {
		return err
	}

	printReport(cfg, report)
	return nil
}

func printReport(cfg *config.Config, r *backtest.Report) {
	fmt.Printf("%s %s..%s  leverage=%dx  candles=%d\n",
		cfg.Data.Symbol, cfg.Data.StartDate, cfg.Data.EndDate, cfg.Account.Leverage, r.CandlesProcessed)
	fmt.Printf("Initial=%s Final=%s Return=%.4f%% MaxDD=%.4f%% Sharpe=%.3f\n",
		r.InitialBalance.StringFixed(2), r.FinalEquity.StringFixed(2),
		r.TotalReturn*100, r.MaxDrawdown*100, r.SharpeRatio)
	fmt.Printf("Trades=%d WinRate=%.2f%% Fees=%s Rebate=%s Net=%s\n",
		r.TotalTrades, r.WinRate*100, r.TotalFees.StringFixed(4),
		r.TotalRebate.StringFixed(4), r.NetProfit().StringFixed(4))
	for _, p := range r.Rebates {
		fmt.Printf("  rebate %s..%s paid %s: fee=%s payout=%s (%d trades)\n",
			p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"),
			p.PayoutDate.Format("2006-01-02"), p.AccumulatedFee.StringFixed(4),
			p.PayoutAmount.StringFixed(4), p.TradeCount)
	}
	switch {
	case r.Liquidated:
		fmt.Printf("LIQUIDATED at %s\n", time.UnixMilli(*r.LiquidationTimestamp).UTC().Format(time.RFC3339))
	case r.Aborted:
		fmt.Println("ABORTED before the last candle")
	}
	for _, p := range []string{cfg.Report.TradesCSV, cfg.Report.EquityCSV, cfg.Report.JSON} {
		if p != "" {
			fmt.Printf("Wrote %s\n", p)
		}
	}
}

func cmdSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	spreads := fs.String("spreads", "0.001,0.002,0.005", "Comma-separated symmetric spreads")
	leverages := fs.String("leverage", "", "Comma-separated leverages (default: config value)")
	parallel := fs.Int("parallel", 4, "Variations run at once")
	_ = fs.Parse(args)

	base, err := common.load()
	if err != nil {
		return err
	}
	spreadVals, err := parseFloats(*spreads)
	if err != nil {
		return fmt.Errorf("--spreads: %w", err)
	}
	levVals := []int{base.Account.Leverage}
	if *leverages != "" {
		if levVals, err = parseInts(*leverages); err != nil {
			return fmt.Errorf("--leverage: %w", err)
		}
	}

	variations, err := sweepVariations(*base, spreadVals, levVals)
	if err != nil {
		return err
	}

	log, err := newLogger(base)
	if err != nil {
		return err
	}
	defer log.Sync()
	run := runner.New(log)
	defer run.Close()

	ctx, cancel := common.context(ctx)
	defer cancel()

	results := make([]analysis.RankedRun, len(variations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i, v := range variations {
		i, v := i, v
		g.Go(func() error {
			report, err := run.Run(gctx, &v.cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", v.label, err)
			}
			results[i] = analysis.RankedRun{
				Label:   v.label,
				Metrics: analysis.Summarize(report.InitialBalance, report.FinalEquity, report.Trades, report.EquityCurve),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ranked := analysis.RankBySharpe(results)
	fmt.Printf("%-4s %-24s %-10s %-10s %-8s %-8s %-12s\n", "rank", "variation", "return%", "maxdd%", "sharpe", "trades", "fees")
	for i, r := range ranked {
		fmt.Printf("%-4d %-24s %-10.4f %-10.4f %-8.3f %-8d %-12s\n",
			i+1, r.Label, r.TotalReturn*100, r.MaxDrawdown*100, r.SharpeRatio, r.TotalTrades, r.TotalFees.StringFixed(4))
	}
	stats := run.Stats()
	fmt.Printf("cache: %d hits, %d misses\n", stats.Hits, stats.Misses)
	return nil
}

type variation struct {
	label string
	cfg   config.Config
}

// sweepVariations builds one validated config per (leverage, spread) pair.
// Fields are assigned directly since Merge cannot set a spread to zero.
func sweepVariations(base config.Config, spreads []float64, leverages []int) ([]variation, error) {
	var out []variation
	for _, lev := range leverages {
		for _, sp := range spreads {
			cfg := base
			cfg.Account.Leverage = lev
			cfg.Grid.BidSpread, cfg.Grid.AskSpread = sp, sp
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			out = append(out, variation{
				label: fmt.Sprintf("spread=%g lev=%dx", sp, lev),
				cfg:   cfg,
			})
		}
	}
	return out, nil
}

func cmdRank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	sources := fs.String("sources", "", "Comma-separated source ids (default: every source the supplier lists)")
	_ = fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	run := runner.New(log)
	defer run.Close()

	ids := splitList(*sources)
	if len(ids) == 0 {
		lister, err := run.Lister(ctx, cfg.Data)
		if err != nil {
			return err
		}
		if ids, err = lister.Sources(ctx); err != nil {
			return err
		}
	}

	cache, err := run.Cache(ctx, cfg.Data)
	if err != nil {
		return err
	}
	var profiles []analysis.SourceProfile
	for _, id := range ids {
		candles, err := cache.LoadDates(ctx, id, cfg.Data.StartDate, cfg.Data.EndDate)
		if errors.Is(err, data.ErrDataNotFound) {
			log.Warn("no candles in range", zap.String("source", id))
			continue
		}
		if err != nil {
			return err
		}
		profiles = append(profiles, analysis.ComputeProfile(id, candles))
	}

	ranked := analysis.RankSourcesByVolatility(profiles)
	fmt.Printf("%-4s %-18s %-8s %-12s %-12s %-10s %-10s\n", "rank", "source", "count", "min/max", "mean range%", "p95 range%", "cross%")
	for i, p := range ranked {
		fmt.Printf("%-4d %-18s %-8d %-5.1f/%-6.1f %-12.4f %-10.4f %-10.2f\n",
			i+1, p.SourceID, p.Count, p.MinClose, p.MaxClose, p.MeanRangePct*100, p.P95RangePct*100, p.CrossRate*100)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, p := range splitList(s) {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no values")
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no values")
	}
	return out, nil
}
