package backtest

import (
	"errors"
	"fmt"

	"grid-backtest/internal/exchange"
	"grid-backtest/internal/rebate"
	"grid-backtest/internal/risk"
	"grid-backtest/internal/strategy"
)

var ErrInvalidSetup = errors.New("invalid backtest setup")

// StrategyFactory builds the quoting strategy for one run.
type StrategyFactory func(account strategy.AccountView, filter strategy.Filter) (strategy.Strategy, error)

// Setup is the immutable input of one run. Each run builds its own account,
// risk manager and strategy from it.
type Setup struct {
	Account exchange.Params
	Grid    strategy.GridConfig
	Risk    risk.Config
	Rebate  rebate.Config

	// EquitySampleInterval is the number of candles between equity samples.
	EquitySampleInterval int

	// NewStrategy replaces grid quoting when set.
	NewStrategy StrategyFactory
}

func (s Setup) Validate() error {
	if err := s.Account.Validate(); err != nil {
		return fmt.Errorf("%w: account: %v", ErrInvalidSetup, err)
	}
	if s.NewStrategy == nil {
		if err := s.Grid.Validate(); err != nil {
			return fmt.Errorf("%w: grid: %v", ErrInvalidSetup, err)
		}
	}
	if err := s.Risk.Validate(); err != nil {
		return fmt.Errorf("%w: risk: %v", ErrInvalidSetup, err)
	}
	if err := s.Rebate.Validate(); err != nil {
		return fmt.Errorf("%w: rebate: %v", ErrInvalidSetup, err)
	}
	if s.EquitySampleInterval < 1 {
		return fmt.Errorf("%w: equity sample interval must be >= 1", ErrInvalidSetup)
	}
	return nil
}

func (s Setup) strategy(account strategy.AccountView, filter strategy.Filter) (strategy.Strategy, error) {
	if s.NewStrategy != nil {
		return s.NewStrategy(account, filter)
	}
	return strategy.NewGridStrategy(s.Grid, account, filter)
}
