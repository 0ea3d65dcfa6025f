package model

import "fmt"

// Action is the kind of a ledger operation on one hedge-mode leg.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionOpenLong   Action = "open_long"
	ActionOpenShort  Action = "open_short"
	ActionCloseLong  Action = "close_long"
	ActionCloseShort Action = "close_short"
)

// Side is the leg an action touches.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionOpenLong, ActionOpenShort, ActionCloseLong, ActionCloseShort:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

func (a Action) Valid() bool {
	_, err := ParseAction(string(a))
	return err == nil
}

func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

func (a Action) IsClose() bool {
	return a == ActionCloseLong || a == ActionCloseShort
}

// IsBuy reports whether the action buys the contract (open_long, close_short).
func (a Action) IsBuy() bool {
	return a == ActionOpenLong || a == ActionCloseShort
}

func (a Action) Side() Side {
	if a == ActionOpenLong || a == ActionCloseLong {
		return SideLong
	}
	return SideShort
}

// CloseFor returns the action that reduces the given leg.
func CloseFor(side Side) Action {
	if side == SideLong {
		return ActionCloseLong
	}
	return ActionCloseShort
}
