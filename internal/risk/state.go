package risk

// State is the volatility regime derived from ATR%.
type State int

const (
	StateNormal State = iota
	StateBalancing
	StateExtreme
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateBalancing:
		return "balancing"
	case StateExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// Assessment is the outcome of one candle's evaluation.
type Assessment struct {
	State     State
	Emergency bool
	ATRPct    float64
	Ready     bool
}
