package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"midrev/internal/broker"
	"midrev/internal/risk"
	"midrev/internal/state"
	"midrev/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LifecycleState is a step of the order lifecycle for one trading
// opportunity.
type LifecycleState string

const (
	StateIdle       LifecycleState = "IDLE"
	StatePlacing    LifecycleState = "PLACING"
	StateResting    LifecycleState = "RESTING"
	StateCancelling LifecycleState = "CANCELLING"
	StateRepricing  LifecycleState = "REPRICING"
	StateFilled     LifecycleState = "FILLED"
)

type Result string

const (
	// ResultSkipped: sizing decided nothing should be sent.
	ResultSkipped Result = "skipped"
	// ResultPlacementFailed: the first order was not accepted.
	ResultPlacementFailed Result = "placement_failed"
	// ResultFilled: the cancel failed, so the order is taken as filled.
	ResultFilled Result = "filled"
	// ResultRepriced: the cancel succeeded and a second order was sent.
	ResultRepriced Result = "repriced"
	// ResultCancelUnknown: strict mode only, the cancel hit a transport error.
	ResultCancelUnknown Result = "cancel_unknown"
	// ResultIgnored: Hold was passed in; nothing happened.
	ResultIgnored Result = "ignored"
)

// Outcome describes what one lifecycle did.
type Outcome struct {
	Action         strategy.Action
	Result         Result
	Path           []LifecycleState
	LimitPrice     decimal.Decimal
	Size           decimal.Decimal
	OrderID        string
	RepricePrice   decimal.Decimal
	RepriceSize    decimal.Decimal
	RepriceOrderID string
	RepriceErr     error
	Err            error
}

func (o Outcome) Final() LifecycleState {
	if len(o.Path) == 0 {
		return StateIdle
	}
	return o.Path[len(o.Path)-1]
}

type ControllerConfig struct {
	GracePeriod     time.Duration
	RepriceSlippage float64
	PriceDecimals   int32
	// StrictCancel separates transport failures on cancel from the
	// "already filled" interpretation.
	StrictCancel bool
}

type Sizer interface {
	Size(ctx context.Context, side broker.Side, limit decimal.Decimal) (risk.Sizing, error)
}

// Controller runs the place, wait, cancel, reprice lifecycle. Handle holds
// a mutex for the whole lifecycle so at most one order is in flight.
type Controller struct {
	cfg      ControllerConfig
	exchange broker.Exchange
	sizer    Sizer
	state    *state.Store
	waiter   Waiter
	log      *logrus.Entry
	now      func() time.Time
	mu       sync.Mutex
}

func NewController(cfg ControllerConfig, exchange broker.Exchange, sizer Sizer, store *state.Store, waiter Waiter, log *logrus.Entry) *Controller {
	if waiter == nil {
		waiter = TimerWaiter{}
	}
	if log == nil {
		log = logrus.WithField("component", "lifecycle")
	}
	return &Controller{
		cfg:      cfg,
		exchange: exchange,
		sizer:    sizer,
		state:    store,
		waiter:   waiter,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle acts on a Buy or Sell signal at price and records the action as
// executed once the lifecycle reaches a terminal step, whatever the result.
func (c *Controller) Handle(ctx context.Context, action strategy.Action, price float64) Outcome {
	if action != strategy.Buy && action != strategy.Sell {
		return Outcome{Action: action, Result: ResultIgnored}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetInFlight(true)
	defer c.state.SetInFlight(false)

	side := broker.Sell
	if action.IsBuy() {
		side = broker.Buy
	}
	out := Outcome{
		Action:     action,
		LimitPrice: strategy.RoundPrice(price, c.cfg.PriceDecimals),
		Path:       []LifecycleState{StateIdle},
	}
	log := c.log.WithFields(logrus.Fields{"action": action, "limit": out.LimitPrice})
	defer func() {
		c.state.SetLastExecuted(action, c.now())
		log.WithFields(logrus.Fields{"result": out.Result, "path": out.Path}).Info("lifecycle complete")
	}()

	c.enter(&out, log, StatePlacing)
	handle, size, err := c.place(ctx, side, out.LimitPrice)
	if err != nil {
		out.Err = err
		out.Result = ResultPlacementFailed
		if isSizingRejection(err) {
			out.Result = ResultSkipped
			log.WithError(err).Info("order not placed, position already reflects the trade")
		} else {
			log.WithError(err).Warn("order placement failed")
		}
		c.enter(&out, log, StateIdle)
		return out
	}
	out.Size = size
	out.OrderID = handle.ID
	log = log.WithField("order_id", handle.ID)
	log.WithFields(logrus.Fields{"size": size, "filled": handle.Filled}).Info("order placed")

	// once an order is live the lifecycle runs to completion so it is never
	// left resting on shutdown
	lifecycleCtx := context.WithoutCancel(ctx)

	c.enter(&out, log, StateResting)
	if err := c.waiter.Wait(lifecycleCtx, c.cfg.GracePeriod); err != nil {
		log.WithError(err).Warn("grace period wait interrupted")
	}

	c.enter(&out, log, StateCancelling)
	if err := c.exchange.Cancel(lifecycleCtx, handle); err != nil {
		out.Err = err
		if c.cfg.StrictCancel && broker.IsTransport(err) {
			out.Result = ResultCancelUnknown
			log.WithError(err).Error("cancel failed in transport, order state unknown")
			c.enter(&out, log, StateIdle)
			return out
		}
		out.Result = ResultFilled
		log.WithError(err).Info("cancel failed, order treated as filled")
		c.enter(&out, log, StateFilled)
		c.enter(&out, log, StateIdle)
		return out
	}

	c.enter(&out, log, StateRepricing)
	out.Result = ResultRepriced
	out.RepricePrice = c.reprice(out.LimitPrice, side)
	rehandle, resize, err := c.place(lifecycleCtx, side, out.RepricePrice)
	out.RepriceSize = resize
	if err != nil {
		out.RepriceErr = err
		log.WithError(err).WithField("reprice", out.RepricePrice).Warn("reprice submission failed")
	} else {
		out.RepriceOrderID = rehandle.ID
		log.WithFields(logrus.Fields{
			"reprice":          out.RepricePrice,
			"size":             resize,
			"reprice_order_id": rehandle.ID,
		}).Info("reprice submitted")
	}
	c.enter(&out, log, StateIdle)
	return out
}

func (c *Controller) place(ctx context.Context, side broker.Side, limit decimal.Decimal) (broker.OrderHandle, decimal.Decimal, error) {
	sizing, err := c.sizer.Size(ctx, side, limit)
	if err != nil {
		return broker.OrderHandle{}, decimal.Zero, err
	}
	handle, err := c.exchange.Submit(ctx, broker.OrderIntent{Side: side, LimitPrice: limit, Size: sizing.Size})
	if err != nil {
		return broker.OrderHandle{}, sizing.Size, err
	}
	return handle, sizing.Size, nil
}

// reprice moves the limit against us by the slippage factor.
func (c *Controller) reprice(limit decimal.Decimal, side broker.Side) decimal.Decimal {
	factor := decimal.NewFromFloat(1 - c.cfg.RepriceSlippage)
	if side == broker.Buy {
		factor = decimal.NewFromFloat(1 + c.cfg.RepriceSlippage)
	}
	return limit.Mul(factor).Round(c.cfg.PriceDecimals)
}

func (c *Controller) enter(out *Outcome, log *logrus.Entry, next LifecycleState) {
	log.WithFields(logrus.Fields{"from": out.Final(), "to": next}).Debug("lifecycle transition")
	out.Path = append(out.Path, next)
}

func isSizingRejection(err error) bool {
	return errors.Is(err, risk.ErrPositionHeld) || errors.Is(err, risk.ErrKillSwitch) || errors.Is(err, risk.ErrSizeTooSmall)
}
