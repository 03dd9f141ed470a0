package engine

import (
	"context"
	"errors"
	"time"

	"midrev/internal/md"
	"midrev/internal/state"
	"midrev/internal/strategy"

	"github.com/sirupsen/logrus"
)

// Handler runs the order lifecycle for an acted signal.
type Handler interface {
	Handle(ctx context.Context, action strategy.Action, price float64) Outcome
}

type LoopConfig struct {
	Symbol     string
	WindowSize int
	Policy     TickPolicy
	RunID      string
}

// Loop consumes ticks, keeps the rolling average and hands non-duplicate
// signals to the lifecycle controller. Ticks are processed strictly one at
// a time.
type Loop struct {
	cfg       LoopConfig
	window    *md.RollingAverage
	evaluator strategy.Evaluator
	handler   Handler
	state     *state.Store
	journal   Journal
	observers []func(price float64)
	log       *logrus.Entry
	now       func() time.Time
}

func NewLoop(cfg LoopConfig, evaluator strategy.Evaluator, handler Handler, store *state.Store, journal Journal, log *logrus.Entry) *Loop {
	if cfg.Policy == "" {
		cfg.Policy = DropStale
	}
	if journal == nil {
		journal = discardJournal{}
	}
	if log == nil {
		log = logrus.WithField("component", "engine")
	}
	return &Loop{
		cfg:       cfg,
		window:    md.NewRollingAverage(cfg.WindowSize),
		evaluator: evaluator,
		handler:   handler,
		state:     store,
		journal:   journal,
		log:       log.WithField("symbol", cfg.Symbol),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Observe registers fn to see every well-formed price for the symbol,
// including ticks dropped while a lifecycle was running.
func (l *Loop) Observe(fn func(price float64)) {
	l.observers = append(l.observers, fn)
}

// Window exposes the rolling window for inspection.
func (l *Loop) Window() *md.RollingAverage {
	return l.window
}

// Run returns nil when ticks is closed and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context, ticks <-chan md.Tick) error {
	l.log.WithField("policy", l.cfg.Policy).Info("price feed loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				l.log.Info("price feed closed")
				return nil
			}
			if !l.OnTick(ctx, tick) || l.cfg.Policy != DropStale {
				continue
			}
			if dropped := l.drain(ticks); dropped > 0 {
				l.state.RecordDropped(dropped)
				l.log.WithField("dropped", dropped).Info("discarded ticks received during order lifecycle")
			}
		}
	}
}

// OnTick processes one tick and reports whether the lifecycle controller
// ran for it.
func (l *Loop) OnTick(ctx context.Context, tick md.Tick) bool {
	if tick.Symbol != l.cfg.Symbol {
		return false
	}
	price, err := md.ParsePrice(tick)
	if err != nil {
		var parseErr *md.ParseError
		if errors.As(err, &parseErr) {
			l.state.RecordMalformed()
		}
		l.log.WithError(err).Warn("skipping malformed tick")
		return false
	}
	l.notify(price)

	average := l.window.Push(price)
	l.state.RecordTick(price, average, l.window.Len(), l.now())
	action := l.evaluator.Evaluate(price, average)
	l.log.WithFields(logrus.Fields{"price": price, "average": average, "signal": action}).Debug("tick")

	if action == strategy.Hold {
		return false
	}
	if last := l.state.LastExecuted(); action == last {
		l.log.WithField("signal", action).Debug("signal matches last executed action, skipping")
		return false
	}

	l.log.WithFields(logrus.Fields{"price": price, "average": average, "signal": action}).Info("acting on signal")
	outcome := l.handler.Handle(ctx, action, price)
	l.journal.Append(l.decision(price, average, outcome))
	return true
}

func (l *Loop) drain(ticks <-chan md.Tick) int {
	dropped := 0
	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				return dropped
			}
			dropped++
			if tick.Symbol != l.cfg.Symbol {
				continue
			}
			if price, err := md.ParsePrice(tick); err == nil {
				l.notify(price)
			}
		default:
			return dropped
		}
	}
}

func (l *Loop) notify(price float64) {
	for _, fn := range l.observers {
		fn(price)
	}
}

func (l *Loop) decision(price, average float64, outcome Outcome) Decision {
	d := Decision{
		RunID:          l.cfg.RunID,
		Timestamp:      l.now(),
		Symbol:         l.cfg.Symbol,
		Price:          price,
		Average:        average,
		Intent:         outcome.Action,
		Result:         string(outcome.Result),
		OrderID:        outcome.OrderID,
		RepriceOrderID: outcome.RepriceOrderID,
	}
	if !outcome.LimitPrice.IsZero() {
		d.LimitPrice = outcome.LimitPrice.String()
	}
	if !outcome.Size.IsZero() {
		d.Size = outcome.Size.String()
	}
	if !outcome.RepricePrice.IsZero() {
		d.RepricePrice = outcome.RepricePrice.String()
	}
	if !outcome.RepriceSize.IsZero() {
		d.RepriceSize = outcome.RepriceSize.String()
	}
	if outcome.RepriceErr != nil {
		d.RepriceError = outcome.RepriceErr.Error()
	}
	if outcome.Err != nil {
		d.Error = outcome.Err.Error()
	}
	return d
}
