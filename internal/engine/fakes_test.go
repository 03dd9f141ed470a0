package engine

import (
	"context"
	"sync"
	"time"

	"midrev/internal/broker"
	"midrev/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type submitResult struct {
	handle broker.OrderHandle
	err    error
}

type fakeExchange struct {
	mu         sync.Mutex
	submits    []broker.OrderIntent
	cancels    []broker.OrderHandle
	results    []submitResult
	cancelErr  error
	balances   map[string]decimal.Decimal
	balanceErr error
}

func newFakeExchange(balances map[string]string) *fakeExchange {
	ex := &fakeExchange{balances: make(map[string]decimal.Decimal)}
	for asset, qty := range balances {
		ex.balances[asset] = decimal.RequireFromString(qty)
	}
	return ex
}

func (f *fakeExchange) queue(id string, err error) {
	f.results = append(f.results, submitResult{handle: broker.OrderHandle{ID: id}, err: err})
}

func (f *fakeExchange) Submit(ctx context.Context, intent broker.OrderIntent) (broker.OrderHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, intent)
	if len(f.results) == 0 {
		return broker.OrderHandle{ID: "auto"}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	if next.err != nil {
		return broker.OrderHandle{}, next.err
	}
	return next.handle, nil
}

func (f *fakeExchange) Cancel(ctx context.Context, handle broker.OrderHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, handle)
	return f.cancelErr
}

func (f *fakeExchange) Balance(ctx context.Context, asset string) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Zero, false, f.balanceErr
	}
	qty, ok := f.balances[asset]
	return qty, ok, nil
}

type instantWaiter struct {
	waits []time.Duration
}

func (w *instantWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return nil
}

type recordingJournal struct {
	decisions []Decision
}

func (j *recordingJournal) Append(d Decision) {
	j.decisions = append(j.decisions, d)
}

type handledCall struct {
	action strategy.Action
	price  float64
}

func testEntry() *logrus.Entry {
	return logrus.WithField("component", "test")
}
