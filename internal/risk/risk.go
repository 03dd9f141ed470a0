package risk

import (
	"context"
	"errors"
	"fmt"

	"midrev/internal/broker"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type SizePolicy string

const (
	// SizeFromBalance buys with the whole available quote balance and sells
	// the whole available base balance, floored to the lot size.
	SizeFromBalance SizePolicy = "balance"
	// SizeFixed always trades FixedSize.
	SizeFixed SizePolicy = "fixed"
)

var (
	// ErrPositionHeld means the account already reflects the requested
	// direction: not enough quote to buy or not enough base to sell.
	ErrPositionHeld = errors.New("position_already_held")
	ErrKillSwitch   = errors.New("kill_switch_enabled")
	ErrSizeTooSmall = errors.New("size_below_lot")
)

// Sizer decides how much to trade for a signal and whether to trade at all.
type Sizer struct {
	Balances        BalanceSource
	Base            string
	Quote           string
	Policy          SizePolicy
	FixedSize       decimal.Decimal
	LotSize         decimal.Decimal
	MinQuoteBalance decimal.Decimal
	MinBaseBalance  decimal.Decimal
	KillSwitch      bool
	Log             *logrus.Entry
}

type BalanceSource interface {
	Balance(ctx context.Context, asset string) (decimal.Decimal, bool, error)
}

type Sizing struct {
	Size         decimal.Decimal
	BaseBalance  decimal.Decimal
	QuoteBalance decimal.Decimal
}

func (s Sizer) Validate() error {
	switch s.Policy {
	case SizeFromBalance:
		if !s.LotSize.IsPositive() {
			return fmt.Errorf("lot size must be > 0")
		}
	case SizeFixed:
		if !s.FixedSize.IsPositive() {
			return fmt.Errorf("fixed size must be > 0")
		}
	default:
		return fmt.Errorf("unknown size policy: %s", s.Policy)
	}
	if s.MinQuoteBalance.IsNegative() || s.MinBaseBalance.IsNegative() {
		return fmt.Errorf("balance floors must be >= 0")
	}
	return nil
}

// Size returns the order size for side at limit, or an error explaining why
// nothing should be submitted.
func (s Sizer) Size(ctx context.Context, side broker.Side, limit decimal.Decimal) (Sizing, error) {
	log := s.logger()
	if s.KillSwitch {
		log.WithField("reason", "kill_switch_enabled").Info("sizing rejected")
		return Sizing{}, ErrKillSwitch
	}

	var sizing Sizing
	if s.needsBalances() {
		sizing.QuoteBalance = s.balance(ctx, s.Quote)
		sizing.BaseBalance = s.balance(ctx, s.Base)

		if side == broker.Buy && sizing.QuoteBalance.LessThan(s.MinQuoteBalance) {
			log.WithFields(logrus.Fields{"asset": s.Quote, "available": sizing.QuoteBalance, "floor": s.MinQuoteBalance}).Info("sizing rejected: quote balance below floor")
			return sizing, ErrPositionHeld
		}
		if side == broker.Sell && sizing.BaseBalance.LessThan(s.MinBaseBalance) {
			log.WithFields(logrus.Fields{"asset": s.Base, "available": sizing.BaseBalance, "floor": s.MinBaseBalance}).Info("sizing rejected: base balance below floor")
			return sizing, ErrPositionHeld
		}
	}

	switch s.Policy {
	case SizeFixed:
		sizing.Size = s.FixedSize
	default:
		raw := sizing.BaseBalance
		if side == broker.Buy {
			if !limit.IsPositive() {
				return sizing, fmt.Errorf("limit price must be > 0")
			}
			raw = sizing.QuoteBalance.Div(limit)
		}
		sizing.Size = FloorToLot(raw, s.LotSize)
	}

	if !sizing.Size.IsPositive() {
		log.WithFields(logrus.Fields{"side": side, "size": sizing.Size}).Info("sizing rejected: size below one lot")
		return sizing, ErrSizeTooSmall
	}

	log.WithFields(logrus.Fields{"side": side, "limit": limit, "size": sizing.Size, "policy": s.Policy}).Debug("sizing approved")
	return sizing, nil
}

// FloorToLot rounds qty down to a whole number of lots.
func FloorToLot(qty, lot decimal.Decimal) decimal.Decimal {
	if !lot.IsPositive() {
		return qty
	}
	return qty.Div(lot).Floor().Mul(lot)
}

func (s Sizer) needsBalances() bool {
	return s.Policy != SizeFixed || s.MinQuoteBalance.IsPositive() || s.MinBaseBalance.IsPositive()
}

// balance treats a failed or missing lookup as an empty balance.
func (s Sizer) balance(ctx context.Context, asset string) decimal.Decimal {
	qty, ok, err := s.Balances.Balance(ctx, asset)
	if err != nil {
		s.logger().WithError(err).WithField("asset", asset).Warn("balance query failed, assuming zero")
		return decimal.Zero
	}
	if !ok {
		return decimal.Zero
	}
	return qty
}

func (s Sizer) logger() *logrus.Entry {
	if s.Log != nil {
		return s.Log
	}
	return logrus.WithField("component", "risk")
}
