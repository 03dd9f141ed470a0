package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bands is a mean reversion evaluator: it sells when the price rises above
// average*Upper and buys when it falls below average*Lower.
type Bands struct {
	Upper float64
	Lower float64
}

func NewBands(upper, lower float64) (Bands, error) {
	b := Bands{Upper: upper, Lower: lower}
	if err := b.Validate(); err != nil {
		return Bands{}, err
	}
	return b, nil
}

func DefaultBands() Bands {
	return Bands{Upper: 1.001, Lower: 0.999}
}

// Validate requires Upper > 1 > Lower > 0 so that a single evaluation can
// never be both a buy and a sell.
func (b Bands) Validate() error {
	if b.Upper <= 1 {
		return fmt.Errorf("upper band must be > 1, got %v", b.Upper)
	}
	if b.Lower >= 1 || b.Lower <= 0 {
		return fmt.Errorf("lower band must be in (0, 1), got %v", b.Lower)
	}
	return nil
}

func (b Bands) Evaluate(price, average float64) Action {
	if price > average*b.Upper {
		return Sell
	}
	if price < average*b.Lower {
		return Buy
	}
	return Hold
}

// RoundPrice rounds a price to the given number of decimal places for use
// as a limit price.
func RoundPrice(price float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(places)
}
