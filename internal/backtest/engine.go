package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/exchange"
	"grid-backtest/internal/model"
	"grid-backtest/internal/rebate"
	"grid-backtest/internal/risk"
	"grid-backtest/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Engine struct {
	log *zap.Logger
}

// New returns an engine. A nil logger disables logging.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// run is the private state of one Run call.
type run struct {
	account  *exchange.Account
	risk     *risk.VolatilityRiskManager
	strategy strategy.Strategy
	book     *matcher
	curve    []model.EquityPoint

	liquidatedAt *int64
	processed    int
}

// Run replays candles in order through a fresh account. Each candle is
// walked along its five-point trajectory, resting quotes are matched at every
// point, and the risk manager is updated once the candle closes. Cancelling
// ctx stops the run between candles and returns a partial report.
func (e *Engine) Run(ctx context.Context, candles []model.Candle, setup Setup) (*Report, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.New("no candles")
	}

	account, err := exchange.NewAccount(setup.Account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	rm, err := risk.NewVolatilityRiskManager(setup.Risk, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	strat, err := setup.strategy(account, rm)
	if err != nil {
		return nil, fmt.Errorf("%w: strategy: %v", ErrInvalidSetup, err)
	}

	r := &run{
		account:  account,
		risk:     rm,
		strategy: strat,
		book:     newMatcher(account),
		curve:    make([]model.EquityPoint, 0, len(candles)/setup.EquitySampleInterval+2),
	}

	started := time.Now()
	e.log.Info("backtest started",
		zap.String("strategy", strat.Name()),
		zap.Int("candles", len(candles)),
		zap.Int("leverage", setup.Account.Leverage),
		zap.String("initial_balance", setup.Account.InitialBalance.String()),
	)

	aborted := false
	for idx, c := range candles {
		if ctx.Err() != nil {
			aborted = true
			e.log.Warn("backtest aborted", zap.Int("candle", idx), zap.Error(ctx.Err()))
			break
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("candle %d: %w", idx, err)
		}

		if err := e.replayCandle(r, idx, c); err != nil {
			return nil, fmt.Errorf("candle %d: %w", idx, err)
		}
		r.processed++
		if r.liquidatedAt != nil {
			e.log.Warn("account liquidated",
				zap.Int("candle", idx),
				zap.Int64("timestamp", *r.liquidatedAt),
				zap.String("equity", account.Equity().String()),
				zap.String("maintenance_margin", account.MaintenanceMargin().String()),
			)
			r.sample(*r.liquidatedAt)
			break
		}

		if r.processed%setup.EquitySampleInterval == 0 {
			r.sample(c.OpenTime)
		}
	}
	if r.liquidatedAt == nil && r.processed > 0 {
		last := candles[r.processed-1].OpenTime
		if len(r.curve) == 0 || r.curve[len(r.curve)-1].Timestamp != last {
			r.sample(last)
		}
	}

	report := r.report(setup)
	report.Aborted = aborted
	e.log.Info("backtest finished",
		zap.Int("candles_processed", report.CandlesProcessed),
		zap.Int("trades", report.TotalTrades),
		zap.String("final_equity", report.FinalEquity.String()),
		zap.Bool("liquidated", report.Liquidated),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

// replayCandle walks one candle's trajectory and then applies the risk
// manager's forced trades at the close. Quotes are centred on the candle
// open, the only price known when the candle starts.
func (e *Engine) replayCandle(r *run, idx int, c model.Candle) error {
	for point, price := range c.Trajectory() {
		r.account.UpdatePrice(price)

		orders, ok := r.strategy.GenerateOrders(strategy.Context{
			Index:     idx,
			Point:     point,
			Timestamp: c.OpenTime,
			Mid:       c.Open,
			Price:     price,
		})
		if ok {
			r.book.replace(orders)
		}

		if _, err := r.book.match(price, c.OpenTime); err != nil {
			return fmt.Errorf("point %d match: %w", point, err)
		}
		if r.account.IsLiquidated() {
			ts := c.OpenTime
			r.liquidatedAt = &ts
			return nil
		}
	}

	a := r.risk.Update(c)
	switch {
	case a.Emergency:
		e.log.Warn("emergency close",
			zap.Int("candle", idx),
			zap.Float64("atr_pct", a.ATRPct),
			zap.String("long", r.account.LongSize().String()),
			zap.String("short", r.account.ShortSize().String()),
		)
		if err := r.closeAll(c, model.ReasonRiskEmergency); err != nil {
			return err
		}
		r.book.clear()
	case a.State == risk.StateExtreme:
		if action, amount, ok := r.risk.RebalanceTarget(); ok {
			if err := r.force(c, action, amount, model.ReasonRiskExtreme); err != nil {
				return err
			}
		}
	}
	if r.account.IsLiquidated() {
		ts := c.OpenTime
		r.liquidatedAt = &ts
	}
	return nil
}

func (r *run) closeAll(c model.Candle, reason model.TradeReason) error {
	if size := r.account.LongSize(); size.IsPositive() {
		if err := r.force(c, model.ActionCloseLong, size, reason); err != nil {
			return err
		}
	}
	if size := r.account.ShortSize(); size.IsPositive() {
		if err := r.force(c, model.ActionCloseShort, size, reason); err != nil {
			return err
		}
	}
	return nil
}

// force executes a taker trade at the candle close.
func (r *run) force(c model.Candle, action model.Action, amount decimal.Decimal, reason model.TradeReason) error {
	_, err := r.account.Execute(exchange.Fill{
		Action:    action,
		Amount:    amount,
		Price:     c.Close,
		Timestamp: c.OpenTime,
		Taker:     true,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", reason, action, err)
	}
	return nil
}

func (r *run) sample(ts int64) {
	r.curve = append(r.curve, model.EquityPoint{Timestamp: ts, Equity: r.account.Equity()})
}

func (r *run) report(setup Setup) *Report {
	trades := r.account.Trades()
	final := r.account.Equity()
	m := analysis.Summarize(setup.Account.InitialBalance, final, trades, r.curve)
	periods := rebate.Calculate(trades, setup.Rebate)

	return &Report{
		InitialBalance:       setup.Account.InitialBalance,
		FinalEquity:          final,
		TotalReturn:          m.TotalReturn,
		MaxDrawdown:          m.MaxDrawdown,
		SharpeRatio:          m.SharpeRatio,
		TotalTrades:          m.TotalTrades,
		WinRate:              m.WinRate,
		Liquidated:           r.liquidatedAt != nil,
		LiquidationTimestamp: r.liquidatedAt,
		Trades:               trades,
		EquityCurve:          r.curve,
		Rebates:              periods,
		TotalRebate:          rebate.Total(periods),
		TotalFees:            m.TotalFees,
		CandlesProcessed:     r.processed,
		FinalLong:            r.account.LongSize(),
		FinalShort:           r.account.ShortSize(),
	}
}
