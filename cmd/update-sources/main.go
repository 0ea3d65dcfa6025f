package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/runner"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "Path to YAML config selecting the data source (defaults when empty)")
		source     = flag.String("source", "", "Override data.source (csv, postgres, synthetic)")
		csvDir     = flag.String("csv-dir", "", "Override data.csv_dir")
		outputPath = flag.String("output", "", "Output file path (default: ./data/sources.json)")
		seedFile   = flag.String("seed", "", "Path to existing sources file whose metadata is kept")
		exchange   = flag.String("exchange", "binance-futures", "Exchange recorded for new sources")
		interval   = flag.String("interval", "1m", "Candle interval recorded for new sources")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.LoadUnchecked(*cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *source != "" {
		cfg.Data.Source = *source
	}
	if *csvDir != "" {
		cfg.Data.CSVDir = *csvDir
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Data.PostgresDSN = dsn
	}
	if *outputPath == "" {
		*outputPath = data.GetDefaultSourcesPath()
	}

	// Load existing catalog as seed if provided
	seedPath := *seedFile
	if seedPath == "" {
		seedPath = *outputPath
	}
	var existing []data.Source
	if list, err := data.LoadSources(seedPath); err == nil {
		existing = list.Sources
		fmt.Printf("Loaded %d existing sources from %s\n", len(existing), seedPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	run := runner.New(nil)
	defer run.Close()
	lister, err := run.Lister(ctx, cfg.Data)
	if err != nil {
		log.Fatalf("Failed to open %s source: %v", cfg.Data.Source, err)
	}
	ids, err := lister.Sources(ctx)
	if err != nil {
		log.Fatalf("Failed to list sources: %v", err)
	}
	fmt.Printf("Found %d ids in the %s source\n", len(ids), cfg.Data.Source)

	sources := mergeSources(existing, ids, data.Source{
		Kind:     cfg.Data.Source,
		Exchange: *exchange,
		Interval: *interval,
	})

	list := &data.SourceList{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Sources:   sources,
	}
	if err := data.SaveSources(list, *outputPath); err != nil {
		log.Fatalf("Failed to save sources: %v", err)
	}
	fmt.Printf("Saved %d sources to %s\n", len(sources), *outputPath)
}

// mergeSources keeps seed metadata for ids still present, adds new ids with
// defaults from tmpl, and drops seed entries of the same kind that vanished.
func mergeSources(seed []data.Source, ids []string, tmpl data.Source) []data.Source {
	byID := make(map[string]data.Source, len(seed)+len(ids))
	for _, s := range seed {
		if s.Kind != tmpl.Kind {
			byID[s.ID] = s
		}
	}
	known := make(map[string]data.Source, len(seed))
	for _, s := range seed {
		known[s.ID] = s
	}

	for _, id := range ids {
		if s, ok := known[id]; ok && s.Kind == tmpl.Kind {
			byID[id] = s
			continue
		}
		s := tmpl
		s.ID = id
		s.Symbol = inferSymbol(id)
		byID[id] = s
	}

	out := make([]data.Source, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// inferSymbol strips the synthetic prefix and any "_1m"-style interval suffix.
func inferSymbol(id string) string {
	s := strings.TrimPrefix(id, "SYNTH-")
	if i := strings.LastIndexAny(s, "_-"); i > 0 {
		suffix := s[i+1:]
		if len(suffix) >= 2 && strings.ContainsAny(suffix[len(suffix)-1:], "mhdw") && strings.ContainsAny(suffix[:1], "0123456789") {
			s = s[:i]
		}
	}
	return strings.ToUpper(s)
}
