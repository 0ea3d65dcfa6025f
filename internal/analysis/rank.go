package analysis

import (
	"sort"
)

// RankedRun is one labelled sweep result.
type RankedRun struct {
	Label string `json:"label"`
	Metrics
}

// RankBySharpe sorts descending by SharpeRatio, ties by TotalReturn.
func RankBySharpe(runs []RankedRun) []RankedRun {
	out := append([]RankedRun(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SharpeRatio != out[j].SharpeRatio {
			return out[i].SharpeRatio > out[j].SharpeRatio
		}
		return out[i].TotalReturn > out[j].TotalReturn
	})
	return out
}

// RankByReturn sorts descending by TotalReturn.
func RankByReturn(runs []RankedRun) []RankedRun {
	out := append([]RankedRun(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalReturn > out[j].TotalReturn
	})
	return out
}

// RankSourcesByVolatility sorts profiles descending by MeanRangePct.
func RankSourcesByVolatility(profiles []SourceProfile) []SourceProfile {
	out := append([]SourceProfile(nil), profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeanRangePct > out[j].MeanRangePct
	})
	return out
}
