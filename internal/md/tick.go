package md

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one mid-price observation as delivered by a feed. Price is kept as
// the raw text the venue sent; parsing happens in the decision loop.
type Tick struct {
	Symbol   string
	Price    string
	Received time.Time
}

// ParseError reports a tick whose price text is not a usable price.
type ParseError struct {
	Symbol string
	Text   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse price %q for %s: %v", e.Text, e.Symbol, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParsePrice converts the tick text into a strictly positive price.
func ParsePrice(tick Tick) (float64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(tick.Price))
	if err != nil {
		return 0, &ParseError{Symbol: tick.Symbol, Text: tick.Price, Err: err}
	}
	if !value.IsPositive() {
		return 0, &ParseError{Symbol: tick.Symbol, Text: tick.Price, Err: fmt.Errorf("price must be positive")}
	}
	price := value.InexactFloat64()
	if math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, &ParseError{Symbol: tick.Symbol, Text: tick.Price, Err: fmt.Errorf("price out of range")}
	}
	return price, nil
}
