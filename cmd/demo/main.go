package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logging"
)

// Demo:
// - Generate a few days of synthetic one-minute candles
// - Run the grid strategy with default (or --config) parameters
// - Print the first fills and the summary to show how the pieces fit together
func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	symbol := flag.String("symbol", "SYNTH-ETHUSDT", "Synthetic source id")
	days := flag.Int("days", 3, "Number of days to simulate")
	seed := flag.Int64("seed", 42, "Synthetic price seed")
	n := flag.Int("n", 12, "Number of trades to print")
	outCSV := flag.String("out", "", "Optional path to write trades CSV (e.g. results/trades.csv)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fail(err)
		}
		cfg = *loaded
	}
	cfg.Logging.Format = "text"

	setup, err := cfg.Setup()
	if err != nil {
		fail(err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		fail(err)
	}
	defer log.Sync()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, *days)

	cache := data.NewPreprocessCache(data.NewSyntheticSupplier(*seed), nil, log.Named("cache"))
	candles, err := cache.Load(context.Background(), *symbol, start, end)
	if err != nil {
		fail(err)
	}

	report, err := backtest.New(log.Named("engine")).Run(context.Background(), candles, setup)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Loaded %d candles for %s (%s .. %s)\n", len(candles), *symbol,
		candles[0].Time().Format("2006-01-02 15:04"), candles[len(candles)-1].Time().Format("2006-01-02 15:04"))
	fmt.Printf("Grid spreads bid=%g ask=%g, leverage=%dx\n\n", cfg.Grid.BidSpread, cfg.Grid.AskSpread, cfg.Account.Leverage)

	for i := 0; i < min(*n, len(report.Trades)); i++ {
		t := report.Trades[i]
		fmt.Printf(
			"%s %-11s amt=%-8s px=%-10s fee=%-10s pnl=%-10s long=%-8s short=%-8s eq=%s\n",
			t.Time().Format("2006-01-02 15:04"),
			string(t.Action),
			t.Amount.String(),
			t.Price.StringFixed(2),
			t.Fee.StringFixed(6),
			t.RealizedPnL.StringFixed(4),
			t.ResultingLong.String(),
			t.ResultingShort.String(),
			t.ResultingEquity.StringFixed(4),
		)
	}

	if *outCSV != "" {
		if err := backtest.WriteTradesCSV(*outCSV, report.Trades); err != nil {
			fail(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}

	fmt.Printf("\nDone. Trades=%d Final equity=%s Return=%.4f%% Fees=%s Rebate=%s Liquidated=%v\n",
		report.TotalTrades, report.FinalEquity.StringFixed(4), report.TotalReturn*100,
		report.TotalFees.StringFixed(4), report.TotalRebate.StringFixed(4), report.Liquidated)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "demo: %v\n", err)
	os.Exit(1)
}
