package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderIntent describes one good-till-cancelled limit order attempt.
type OrderIntent struct {
	Side       Side
	LimitPrice decimal.Decimal
	Size       decimal.Decimal
}

// OrderHandle identifies an order the exchange accepted. Filled is set when
// the venue reported an immediate fill instead of a resting order.
type OrderHandle struct {
	ID     string
	Filled bool
}

// Exchange is the narrow surface the engine needs from a trading venue.
type Exchange interface {
	Submit(ctx context.Context, intent OrderIntent) (OrderHandle, error)
	// Cancel returns nil when the order was still open and is now removed.
	Cancel(ctx context.Context, handle OrderHandle) error
	// Balance returns the available quantity of asset; ok is false when the
	// account holds no entry for it.
	Balance(ctx context.Context, asset string) (qty decimal.Decimal, ok bool, err error)
}

// ErrEmptyStatus is returned when the exchange accepted a call but gave no
// actionable status back.
var ErrEmptyStatus = errors.New("exchange returned no status")

// TransportError wraps failures reaching the venue at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is an explicit error answer from the venue.
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Reason)
}

func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
