package risk

import (
	"errors"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// Config holds the volatility thresholds. Every field is required; the state
// machine has no built-in defaults.
type Config struct {
	Period                     int
	HighVolatilityThreshold    decimal.Decimal
	ExtremeVolatilityThreshold decimal.Decimal
	EmergencyCloseThreshold    decimal.Decimal
	// MaxImbalanceRatio is the tolerated |long-short|/(long+short) before a
	// leg counts as overweight. Zero means any strict excess.
	MaxImbalanceRatio decimal.Decimal
	// PositionBalanceRatio is the target long share of gross exposure used
	// when flattening in the extreme state. 0.5 is neutral.
	PositionBalanceRatio decimal.Decimal
}

func (c Config) Validate() error {
	if c.Period < 1 {
		return errors.New("atr period must be >= 1")
	}
	if !c.HighVolatilityThreshold.IsPositive() || !c.ExtremeVolatilityThreshold.IsPositive() || !c.EmergencyCloseThreshold.IsPositive() {
		return errors.New("volatility thresholds must be > 0")
	}
	if c.HighVolatilityThreshold.GreaterThan(c.ExtremeVolatilityThreshold) || c.ExtremeVolatilityThreshold.GreaterThan(c.EmergencyCloseThreshold) {
		return errors.New("volatility thresholds must satisfy high <= extreme <= emergency")
	}
	if c.MaxImbalanceRatio.IsNegative() || c.MaxImbalanceRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("max imbalance ratio must be in [0, 1)")
	}
	if !c.PositionBalanceRatio.IsPositive() || c.PositionBalanceRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("position balance ratio must be in (0, 1)")
	}
	return nil
}

// PositionView is the read-only leg view the manager consults.
type PositionView interface {
	LongSize() decimal.Decimal
	ShortSize() decimal.Decimal
}

// VolatilityRiskManager tracks a rolling average true range and derives the
// risk state from it once per candle.
type VolatilityRiskManager struct {
	cfg       Config
	positions PositionView

	window    []decimal.Decimal
	next      int
	filled    int
	sum       decimal.Decimal
	prevClose decimal.Decimal
	hasPrev   bool

	atrPct    decimal.Decimal
	state     State
	emergency bool
}

func NewVolatilityRiskManager(cfg Config, positions PositionView) (*VolatilityRiskManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if positions == nil {
		return nil, errors.New("position view is nil")
	}
	return &VolatilityRiskManager{
		cfg:       cfg,
		positions: positions,
		window:    make([]decimal.Decimal, cfg.Period),
	}, nil
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(c model.Candle, prevClose decimal.Decimal, hasPrev bool) decimal.Decimal {
	tr := c.High.Sub(c.Low)
	if !hasPrev {
		return tr
	}
	return decimal.Max(tr, c.High.Sub(prevClose).Abs(), c.Low.Sub(prevClose).Abs())
}

// Update folds one candle into the ATR window and recomputes the state.
func (m *VolatilityRiskManager) Update(c model.Candle) Assessment {
	tr := TrueRange(c, m.prevClose, m.hasPrev)
	m.prevClose = c.Close
	m.hasPrev = true

	if m.filled == len(m.window) {
		m.sum = m.sum.Sub(m.window[m.next])
	} else {
		m.filled++
	}
	m.window[m.next] = tr
	m.sum = m.sum.Add(tr)
	m.next = (m.next + 1) % len(m.window)

	if m.Ready() && c.Close.IsPositive() {
		atr := model.Quo(m.sum, decimal.NewFromInt(int64(m.filled)))
		m.atrPct = model.Quo(atr, c.Close)
	} else {
		m.atrPct = decimal.Zero
	}

	m.emergency = m.atrPct.GreaterThanOrEqual(m.cfg.EmergencyCloseThreshold)
	switch {
	case m.atrPct.GreaterThanOrEqual(m.cfg.ExtremeVolatilityThreshold):
		m.state = StateExtreme
	case m.atrPct.GreaterThanOrEqual(m.cfg.HighVolatilityThreshold):
		m.state = StateBalancing
	default:
		m.state = StateNormal
	}
	return m.Assessment()
}

// Ready reports whether a full period of true-range samples has been seen.
// Before that ATR% reads as zero and the state stays Normal.
func (m *VolatilityRiskManager) Ready() bool {
	return m.filled == len(m.window)
}

func (m *VolatilityRiskManager) State() State            { return m.state }
func (m *VolatilityRiskManager) Emergency() bool         { return m.emergency }
func (m *VolatilityRiskManager) ATRPct() decimal.Decimal { return m.atrPct }
func (m *VolatilityRiskManager) Config() Config          { return m.cfg }

func (m *VolatilityRiskManager) Assessment() Assessment {
	pct, _ := m.atrPct.Float64()
	return Assessment{
		State:     m.state,
		Emergency: m.emergency,
		ATRPct:    pct,
		Ready:     m.Ready(),
	}
}

// overweight returns the heavier leg, if the imbalance exceeds the tolerance.
func (m *VolatilityRiskManager) overweight() (model.Side, bool) {
	long, short := m.positions.LongSize(), m.positions.ShortSize()
	if long.Equal(short) {
		return "", false
	}
	gross := long.Add(short)
	imbalance := model.Quo(long.Sub(short).Abs(), gross)
	if !imbalance.GreaterThan(m.cfg.MaxImbalanceRatio) {
		return "", false
	}
	if long.GreaterThan(short) {
		return model.SideLong, true
	}
	return model.SideShort, true
}

// ShouldFilter reports whether an order must be dropped. Only opening orders
// on the overweight side are filtered, and only in the balancing state.
func (m *VolatilityRiskManager) ShouldFilter(action model.Action) bool {
	if m.state != StateBalancing || !action.IsOpen() {
		return false
	}
	side, ok := m.overweight()
	return ok && side == action.Side()
}

// RebalanceTarget returns the close that brings the long share of gross
// exposure back to PositionBalanceRatio. ok is false when nothing needs closing.
func (m *VolatilityRiskManager) RebalanceTarget() (action model.Action, amount decimal.Decimal, ok bool) {
	long, short := m.positions.LongSize(), m.positions.ShortSize()
	r := m.cfg.PositionBalanceRatio
	one := decimal.NewFromInt(1)

	// long' / (long' + short) = r  =>  long' = r*short/(1-r)
	targetLong := model.Quo(r.Mul(short), one.Sub(r))
	if long.GreaterThan(targetLong) {
		return model.ActionCloseLong, long.Sub(targetLong), true
	}
	// long / (long + short') = r  =>  short' = (1-r)*long/r
	targetShort := model.Quo(one.Sub(r).Mul(long), r)
	if short.GreaterThan(targetShort) {
		return model.ActionCloseShort, short.Sub(targetShort), true
	}
	return "", decimal.Zero, false
}
