package backtest

import (
	"grid-backtest/internal/exchange"
	"grid-backtest/internal/model"
	"grid-backtest/internal/strategy"

	"github.com/shopspring/decimal"
)

// matcher holds the resting order book and fills it against trajectory
// points. Buys fill when the point trades at or below the order price, sells
// at or above. Fills execute at the order price as maker.
type matcher struct {
	account *exchange.Account
	book    []strategy.Order
}

func newMatcher(account *exchange.Account) *matcher {
	return &matcher{account: account}
}

func (m *matcher) replace(orders []strategy.Order) {
	m.book = append(m.book[:0], orders...)
}

func (m *matcher) clear() { m.book = m.book[:0] }

func (m *matcher) resting() int { return len(m.book) }

func crosses(o strategy.Order, point decimal.Decimal) bool {
	if o.Action.IsBuy() {
		return point.LessThanOrEqual(o.Price)
	}
	return point.GreaterThanOrEqual(o.Price)
}

// match fills every crossing order in book order. Close orders are clamped
// to the held leg and dropped if the leg is flat.
func (m *matcher) match(point decimal.Decimal, timestamp int64) (int, error) {
	filled := 0
	kept := m.book[:0]
	for _, o := range m.book {
		if !crosses(o, point) {
			kept = append(kept, o)
			continue
		}
		amount := o.Amount
		if o.Action.IsClose() {
			held := m.account.LongSize()
			if o.Action.Side() == model.SideShort {
				held = m.account.ShortSize()
			}
			if !held.IsPositive() {
				continue
			}
			amount = decimal.Min(amount, held)
		}
		if _, err := m.account.Execute(exchange.Fill{
			Action:    o.Action,
			Amount:    amount,
			Price:     o.Price,
			Timestamp: timestamp,
			Reason:    model.ReasonGrid,
		}); err != nil {
			return filled, err
		}
		filled++
	}
	m.book = kept
	return filled, nil
}
