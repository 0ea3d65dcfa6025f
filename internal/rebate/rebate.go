// Package rebate aggregates trading fees into the broker's monthly rebate
// cycles. A cycle runs from the 18th of one month through the 17th of the
// next and pays out on a fixed day of the month the cycle ends in.
package rebate

import (
	"errors"
	"sort"
	"time"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// CycleStartDay is the first day of a rebate cycle.
const CycleStartDay = 18

type Config struct {
	Enabled    bool
	RebateRate decimal.Decimal
	// FXRate converts fees from the quote currency to the payout currency.
	FXRate    decimal.Decimal
	PayoutDay int
	// Location decides which calendar day a trade falls on. Nil means UTC.
	Location *time.Location
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RebateRate.IsNegative() || c.RebateRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("rebate rate must be in [0, 1]")
	}
	if !c.FXRate.IsPositive() {
		return errors.New("fx rate must be > 0")
	}
	if c.PayoutDay < 1 || c.PayoutDay > 28 {
		return errors.New("payout day must be in [1, 28]")
	}
	return nil
}

// Period is the rebate owed for one cycle.
type Period struct {
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	PayoutDate     time.Time       `json:"payout_date"`
	AccumulatedFee decimal.Decimal `json:"accumulated_fee"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	TradeCount     int             `json:"trade_count"`
}

// PayoutDate returns the payout date for a trade at t: the payout day of t's
// month when t is before the 18th, otherwise of the following month.
func PayoutDate(t time.Time, payoutDay int) time.Time {
	y, m, d := t.Date()
	if d >= CycleStartDay {
		m++
	}
	return time.Date(y, m, payoutDay, 0, 0, 0, 0, t.Location())
}

// Calculate groups trade fees by payout date. Periods whose fees sum to zero
// are omitted; the result is sorted by payout date. Disabled configs yield nil.
func Calculate(trades []model.TradeRecord, cfg Config) []Period {
	if !cfg.Enabled || len(trades) == 0 {
		return nil
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	byPayout := make(map[time.Time]*Period)
	for _, tr := range trades {
		payout := PayoutDate(time.UnixMilli(tr.Timestamp).In(loc), cfg.PayoutDay)
		p, ok := byPayout[payout]
		if !ok {
			y, m, _ := payout.Date()
			p = &Period{
				PeriodStart: time.Date(y, m-1, CycleStartDay, 0, 0, 0, 0, loc),
				PeriodEnd:   time.Date(y, m, CycleStartDay-1, 0, 0, 0, 0, loc),
				PayoutDate:  payout,
			}
			byPayout[payout] = p
		}
		p.AccumulatedFee = p.AccumulatedFee.Add(tr.Fee)
		p.TradeCount++
	}

	out := make([]Period, 0, len(byPayout))
	for _, p := range byPayout {
		if p.AccumulatedFee.IsZero() {
			continue
		}
		p.PayoutAmount = p.AccumulatedFee.Mul(cfg.RebateRate).Mul(cfg.FXRate)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayoutDate.Before(out[j].PayoutDate) })
	return out
}

// Total sums the payout amounts.
func Total(periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.PayoutAmount)
	}
	return total
}
