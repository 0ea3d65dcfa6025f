package model

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. OpenTime is milliseconds since the Unix epoch.
type Candle struct {
	OpenTime    int64           `json:"open_time"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	QuoteVolume decimal.Decimal `json:"quote_volume"`
}

// Time returns the candle open time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

func (c Candle) Validate() error {
	if !c.Open.IsPositive() || !c.High.IsPositive() || !c.Low.IsPositive() || !c.Close.IsPositive() {
		return errors.New("candle prices must be > 0")
	}
	if c.High.LessThan(c.Low) {
		return errors.New("candle high must be >= low")
	}
	return nil
}

// Trajectory returns the intrabar price path used for fill simulation:
// open, high, low, midpoint of low and close, close.
func (c Candle) Trajectory() [5]decimal.Decimal {
	mid := Quo(c.Low.Add(c.Close), decimal.NewFromInt(2))
	return [5]decimal.Decimal{c.Open, c.High, c.Low, mid, c.Close}
}

// Candles is a time-ordered candle sequence.
type Candles []Candle

// Sort orders candles by open time (stable, so duplicates keep input order).
func (cs Candles) Sort() {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].OpenTime < cs[j].OpenTime })
}

// Dedupe drops candles whose open time equals the previous one's.
// The input must already be sorted.
func (cs Candles) Dedupe() Candles {
	if len(cs) < 2 {
		return cs
	}
	out := cs[:1]
	for _, c := range cs[1:] {
		if c.OpenTime == out[len(out)-1].OpenTime {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Between returns the candles with start <= open time < end.
func (cs Candles) Between(start, end time.Time) Candles {
	lo, hi := start.UnixMilli(), end.UnixMilli()
	out := make(Candles, 0, len(cs))
	for _, c := range cs {
		if c.OpenTime >= lo && c.OpenTime < hi {
			out = append(out, c)
		}
	}
	return out
}
