package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidSourceID reports whether id is safe to use as a file name.
func ValidSourceID(id string) bool {
	return sourceIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// CSVSupplier reads <Dir>/<source_id>.csv in Binance kline column order:
// open_time, open, high, low, close, volume, close_time, quote_volume, ...
// A header row is skipped. When no CSV exists, <source_id>.json is tried.
type CSVSupplier struct {
	Dir string
}

func NewCSVSupplier(dir string) *CSVSupplier {
	return &CSVSupplier{Dir: dir}
}

func (s *CSVSupplier) Fetch(ctx context.Context, sourceID string, start, end time.Time) ([]model.Candle, error) {
	if !ValidSourceID(sourceID) {
		return nil, fmt.Errorf("%w: invalid source id %q", ErrDataNotFound, sourceID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.Dir, sourceID+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		jsonPath := filepath.Join(s.Dir, sourceID+".json")
		if _, statErr := os.Stat(jsonPath); statErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrDataNotFound, sourceID)
		}
		candles, err := LoadCandlesJSON(jsonPath)
		if err != nil {
			return nil, err
		}
		return model.Candles(candles).Between(start, end), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	candles, err := ReadKlinesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return model.Candles(candles).Between(start, end), nil
}

// Sources lists the ids of all .csv and .json files in Dir.
func (s *CSVSupplier) Sources(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".csv" && ext != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		if !ValidSourceID(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// ReadKlinesCSV parses kline rows. Rows need at least six columns; the
// quote volume is read from column eight when present.
func ReadKlinesCSV(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []model.Candle
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: want at least 6 columns, got %d", line, len(rec))
		}
		openTime, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: open_time: %w", line, err)
		}

		c := model.Candle{OpenTime: openTime}
		fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, dst := range fields {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, i+1, err)
			}
			*dst = v
		}
		if len(rec) > 7 {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[7]))
			if err != nil {
				return nil, fmt.Errorf("line %d: column 7: %w", line, err)
			}
			c.QuoteVolume = v
		}
		out = append(out, c)
	}
	return out, nil
}
