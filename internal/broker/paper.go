package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type paperStatus string

const (
	paperOpen     paperStatus = "open"
	paperFilled   paperStatus = "filled"
	paperCanceled paperStatus = "canceled"
)

type paperOrder struct {
	id     string
	intent OrderIntent
	status paperStatus
}

// Fill is a simulated execution.
type Fill struct {
	OrderID string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// Paper simulates a spot venue with virtual balances. Limit orders that
// cross the last observed mid fill at their limit price immediately; the
// rest wait for Observe to see a crossing mid.
type Paper struct {
	mu        sync.Mutex
	base      string
	quote     string
	available map[string]decimal.Decimal
	held      map[string]decimal.Decimal
	orders    map[string]*paperOrder
	fills     []Fill
	lastMid   decimal.Decimal
	log       *logrus.Entry
}

func NewPaper(base, quote string, baseBalance, quoteBalance decimal.Decimal) *Paper {
	return &Paper{
		base:  base,
		quote: quote,
		available: map[string]decimal.Decimal{
			base:  baseBalance,
			quote: quoteBalance,
		},
		held: map[string]decimal.Decimal{
			base:  decimal.Zero,
			quote: decimal.Zero,
		},
		orders: make(map[string]*paperOrder),
		log:    logrus.WithField("component", "paper"),
	}
}

// Observe records a new mid price and fills any resting order it crosses.
func (p *Paper) Observe(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastMid = decimal.NewFromFloat(price)
	for _, order := range p.orders {
		if order.status == paperOpen && p.crosses(order.intent) {
			p.settle(order)
		}
	}
}

func (p *Paper) Submit(ctx context.Context, intent OrderIntent) (OrderHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !intent.Size.IsPositive() || !intent.LimitPrice.IsPositive() {
		return OrderHandle{}, &RejectedError{Op: "place order", Reason: "size and price must be positive"}
	}
	asset, amount := p.reservation(intent)
	if p.available[asset].LessThan(amount) {
		return OrderHandle{}, &RejectedError{
			Op:     "place order",
			Reason: fmt.Sprintf("insufficient %s balance: need %s, have %s", asset, amount, p.available[asset]),
		}
	}

	p.available[asset] = p.available[asset].Sub(amount)
	p.held[asset] = p.held[asset].Add(amount)

	order := &paperOrder{id: uuid.NewString(), intent: intent, status: paperOpen}
	p.orders[order.id] = order
	if p.crosses(intent) {
		p.settle(order)
	}

	p.log.WithFields(logrus.Fields{
		"order_id": order.id,
		"side":     intent.Side,
		"limit":    intent.LimitPrice,
		"size":     intent.Size,
		"status":   order.status,
	}).Info("paper order accepted")
	return OrderHandle{ID: order.id, Filled: order.status == paperFilled}, nil
}

func (p *Paper) Cancel(ctx context.Context, handle OrderHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[handle.ID]
	if !ok {
		return &RejectedError{Op: "cancel order", Reason: "order not found: " + handle.ID}
	}
	if order.status != paperOpen {
		return &RejectedError{Op: "cancel order", Reason: fmt.Sprintf("order %s is %s", handle.ID, order.status)}
	}

	asset, amount := p.reservation(order.intent)
	p.held[asset] = p.held[asset].Sub(amount)
	p.available[asset] = p.available[asset].Add(amount)
	order.status = paperCanceled
	p.log.WithField("order_id", handle.ID).Info("paper order canceled")
	return nil
}

func (p *Paper) Balance(ctx context.Context, asset string) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	qty, ok := p.available[asset]
	return qty, ok, nil
}

// Fills returns a copy of the simulated executions.
func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]Fill, len(p.fills))
	copy(result, p.fills)
	return result
}

func (p *Paper) reservation(intent OrderIntent) (string, decimal.Decimal) {
	if intent.Side == Buy {
		return p.quote, intent.LimitPrice.Mul(intent.Size)
	}
	return p.base, intent.Size
}

func (p *Paper) crosses(intent OrderIntent) bool {
	if !p.lastMid.IsPositive() {
		return false
	}
	if intent.Side == Buy {
		return intent.LimitPrice.GreaterThanOrEqual(p.lastMid)
	}
	return intent.LimitPrice.LessThanOrEqual(p.lastMid)
}

func (p *Paper) settle(order *paperOrder) {
	asset, amount := p.reservation(order.intent)
	p.held[asset] = p.held[asset].Sub(amount)
	if order.intent.Side == Buy {
		p.available[p.base] = p.available[p.base].Add(order.intent.Size)
	} else {
		p.available[p.quote] = p.available[p.quote].Add(order.intent.LimitPrice.Mul(order.intent.Size))
	}
	order.status = paperFilled
	p.fills = append(p.fills, Fill{
		OrderID: order.id,
		Side:    order.intent.Side,
		Price:   order.intent.LimitPrice,
		Size:    order.intent.Size,
	})
	p.log.WithFields(logrus.Fields{
		"order_id": order.id,
		"side":     order.intent.Side,
		"price":    order.intent.LimitPrice,
		"size":     order.intent.Size,
	}).Info("paper order filled")
}
