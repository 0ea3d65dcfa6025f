package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// SyntheticSupplier generates a deterministic geometric random walk of
// one-minute candles. The same seed, source id and range always produce the
// same candles.
type SyntheticSupplier struct {
	Seed       int64
	StartPrice float64
	// Volatility is the per-candle standard deviation of log returns.
	Volatility float64
	// Drift is the per-candle mean log return.
	Drift float64
}

func NewSyntheticSupplier(seed int64) *SyntheticSupplier {
	return &SyntheticSupplier{Seed: seed, StartPrice: 2000, Volatility: 0.001}
}

func (s *SyntheticSupplier) Fetch(ctx context.Context, sourceID string, start, end time.Time) ([]model.Candle, error) {
	h := fnv.New64a()
	h.Write([]byte(sourceID))
	rng := rand.New(rand.NewSource(s.Seed ^ int64(h.Sum64())))

	first := start.Truncate(time.Minute)
	if first.Before(start) {
		first = first.Add(time.Minute)
	}
	n := int(end.Sub(first) / time.Minute)
	if n <= 0 {
		return nil, nil
	}

	out := make([]model.Candle, 0, n)
	price := s.StartPrice
	for i := 0; i < n; i++ {
		if i%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		open := price
		closePrice := open * math.Exp(s.Drift+s.Volatility*rng.NormFloat64())
		wick := s.Volatility * math.Abs(rng.NormFloat64()) / 2
		high := math.Max(open, closePrice) * (1 + wick)
		low := math.Min(open, closePrice) * (1 - wick)
		volume := 1 + 50*rng.Float64()

		c := model.Candle{
			OpenTime: first.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:     round(open),
			High:     round(high),
			Low:      round(low),
			Close:    round(closePrice),
			Volume:   decimal.NewFromFloat(volume).Round(3),
		}
		c.QuoteVolume = c.Volume.Mul(c.Close).Round(2)
		out = append(out, c)
		price = c.Close.InexactFloat64()
	}
	return out, nil
}

func (s *SyntheticSupplier) Sources(context.Context) ([]string, error) {
	return []string{"SYNTH-ETHUSDT", "SYNTH-BTCUSDT"}, nil
}

func round(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
