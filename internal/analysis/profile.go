package analysis

import (
	"math"
	"sort"
	"time"

	"grid-backtest/internal/model"
)

// CanonicalSpread is the symmetric quote offset used for CrossRate.
const CanonicalSpread = 0.001

// SourceProfile is a candle-level summary of a data source you can use to
// pick sources worth backtesting. It does not depend on any grid parameters
// except the canonical spread behind CrossRate.
type SourceProfile struct {
	SourceID string `json:"source_id"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Count int `json:"count"`

	MinClose  float64 `json:"min_close"`
	MaxClose  float64 `json:"max_close"`
	MeanClose float64 `json:"mean_close"`
	P05Close  float64 `json:"p05_close"`
	P95Close  float64 `json:"p95_close"`

	// MeanRangePct is the mean of (high-low)/open.
	MeanRangePct float64 `json:"mean_range_pct"`
	P95RangePct  float64 `json:"p95_range_pct"`

	// CrossRate is the share of candles whose path touches both a bid and an
	// ask quoted CanonicalSpread away from the open.
	CrossRate float64 `json:"cross_rate"`
}

func ComputeProfile(sourceID string, candles []model.Candle) SourceProfile {
	p := SourceProfile{SourceID: sourceID}
	if len(candles) == 0 {
		return p
	}
	p.Count = len(candles)
	p.Start = candles[0].Time()
	p.End = candles[len(candles)-1].Time()

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	closes := make([]float64, 0, len(candles))
	ranges := make([]float64, 0, len(candles))
	rangeSum := 0.0
	crossed := 0
	for _, c := range candles {
		v := c.Close.InexactFloat64()
		closes = append(closes, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}

		open := c.Open.InexactFloat64()
		if open <= 0 {
			continue
		}
		high, low := c.High.InexactFloat64(), c.Low.InexactFloat64()
		r := (high - low) / open
		ranges = append(ranges, r)
		rangeSum += r
		if high >= open*(1+CanonicalSpread) && low <= open*(1-CanonicalSpread) {
			crossed++
		}
	}
	sort.Float64s(closes)
	sort.Float64s(ranges)
	p.MinClose = minv
	p.MaxClose = maxv
	p.MeanClose = sum / float64(len(closes))
	p.P05Close = percentileSorted(closes, 0.05)
	p.P95Close = percentileSorted(closes, 0.95)
	if len(ranges) > 0 {
		p.MeanRangePct = rangeSum / float64(len(ranges))
		p.P95RangePct = percentileSorted(ranges, 0.95)
	}
	p.CrossRate = float64(crossed) / float64(len(candles))
	return p
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
