package strategy

import "fmt"

// Action is the trade signal produced for a price tick.
type Action uint8

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

func (a Action) MarshalText() ([]byte, error) {
	if a > Sell {
		return nil, fmt.Errorf("invalid action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "HOLD":
		*a = Hold
	case "BUY":
		*a = Buy
	case "SELL":
		*a = Sell
	default:
		return fmt.Errorf("unknown action %q", string(text))
	}
	return nil
}

// IsBuy reports whether the action buys the base asset.
func (a Action) IsBuy() bool {
	return a == Buy
}

// Evaluator turns a price and the current rolling average into an Action.
type Evaluator interface {
	Evaluate(price, average float64) Action
}
