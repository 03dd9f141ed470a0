package engine

import (
	"context"
	"testing"
	"time"

	"midrev/internal/broker"
	"midrev/internal/md"
	"midrev/internal/risk"
	"midrev/internal/state"
	"midrev/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	store *state.Store
	calls []handledCall
}

func (h *fakeHandler) Handle(ctx context.Context, action strategy.Action, price float64) Outcome {
	h.calls = append(h.calls, handledCall{action: action, price: price})
	h.store.SetLastExecuted(action, time.Now())
	return Outcome{Action: action, Result: ResultFilled, LimitPrice: strategy.RoundPrice(price, 5)}
}

func newTestLoop(policy TickPolicy) (*Loop, *fakeHandler, *state.Store, *recordingJournal) {
	store := state.NewStore()
	handler := &fakeHandler{store: store}
	journal := &recordingJournal{}
	loop := NewLoop(LoopConfig{Symbol: "PURR/USDC", WindowSize: 3, Policy: policy, RunID: "run-1"}, strategy.DefaultBands(), handler, store, journal, nil)
	return loop, handler, store, journal
}

func tick(price string) md.Tick {
	return md.Tick{Symbol: "PURR/USDC", Price: price, Received: time.Now()}
}

func feed(ticks ...md.Tick) <-chan md.Tick {
	ch := make(chan md.Tick, len(ticks))
	for _, t := range ticks {
		ch <- t
	}
	close(ch)
	return ch
}

func TestLoopActsOnBuySignal(t *testing.T) {
	loop, handler, store, journal := newTestLoop(BufferStale)

	err := loop.Run(context.Background(), feed(tick("1.0"), tick("0.9")))

	require.NoError(t, err)
	require.Len(t, handler.calls, 1)
	assert.Equal(t, strategy.Buy, handler.calls[0].action)
	assert.Equal(t, 0.9, handler.calls[0].price)
	assert.Equal(t, strategy.Buy, store.LastExecuted())

	require.Len(t, journal.decisions, 1)
	d := journal.decisions[0]
	assert.Equal(t, "run-1", d.RunID)
	assert.Equal(t, "PURR/USDC", d.Symbol)
	assert.Equal(t, strategy.Buy, d.Intent)
	assert.Equal(t, "filled", d.Result)
	assert.Equal(t, "0.9", d.LimitPrice)
	assert.InDelta(t, 0.95, d.Average, 1e-9)
}

func TestLoopSuppressesDuplicateSignal(t *testing.T) {
	loop, handler, _, _ := newTestLoop(BufferStale)

	err := loop.Run(context.Background(), feed(tick("1.0"), tick("0.9"), tick("0.8")))

	require.NoError(t, err)
	assert.Len(t, handler.calls, 1)
	assert.EqualValues(t, 3, loop.Window().Len())
}

func TestLoopHoldDoesNotTouchDecisionState(t *testing.T) {
	loop, handler, store, _ := newTestLoop(BufferStale)

	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), tick("1.0005"))))

	assert.Empty(t, handler.calls)
	snap := store.Snapshot()
	assert.Equal(t, strategy.Hold, snap.LastExecuted)
	assert.EqualValues(t, 2, snap.Ticks)
	assert.Equal(t, 1.0005, snap.LastPrice)
}

func TestLoopSkipsMalformedTick(t *testing.T) {
	loop, handler, store, _ := newTestLoop(BufferStale)

	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), tick("abc"), tick("-3"))))

	assert.Empty(t, handler.calls)
	assert.Equal(t, 1, loop.Window().Len())
	snap := store.Snapshot()
	assert.EqualValues(t, 2, snap.Malformed)
	assert.EqualValues(t, 1, snap.Ticks)
	assert.Equal(t, strategy.Hold, snap.LastExecuted)
}

func TestLoopRejectsOverflowingPrice(t *testing.T) {
	loop, handler, store, _ := newTestLoop(BufferStale)

	ticks := feed(tick("1.0"), tick("1e400"), tick("1.0"), tick("1.0"), tick("1.0"), tick("0.5"), tick("5"))
	require.NoError(t, loop.Run(context.Background(), ticks))

	assert.EqualValues(t, 1, store.Snapshot().Malformed)
	assert.Equal(t, []float64{1.0, 0.5, 5}, loop.Window().Values())
	assert.InDelta(t, 6.5, loop.Window().Sum(), 1e-9)
	require.Len(t, handler.calls, 2)
	assert.Equal(t, strategy.Buy, handler.calls[0].action)
	assert.Equal(t, 0.5, handler.calls[0].price)
	assert.Equal(t, strategy.Sell, handler.calls[1].action)
	assert.Equal(t, 5.0, handler.calls[1].price)
}

func TestLoopIgnoresOtherSymbols(t *testing.T) {
	loop, handler, _, _ := newTestLoop(BufferStale)

	other := md.Tick{Symbol: "@107", Price: "0.1"}
	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), other)))

	assert.Empty(t, handler.calls)
	assert.Equal(t, 1, loop.Window().Len())
}

func TestLoopBufferPolicyProcessesQueuedTicks(t *testing.T) {
	loop, handler, store, _ := newTestLoop(BufferStale)

	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), tick("0.9"), tick("2.0"))))

	require.Len(t, handler.calls, 2)
	assert.Equal(t, strategy.Buy, handler.calls[0].action)
	assert.Equal(t, strategy.Sell, handler.calls[1].action)
	assert.EqualValues(t, 0, store.Snapshot().Dropped)
}

func TestLoopDropPolicyDiscardsQueuedTicks(t *testing.T) {
	loop, handler, store, _ := newTestLoop(DropStale)
	var observed []float64
	loop.Observe(func(price float64) { observed = append(observed, price) })

	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), tick("0.9"), tick("2.0"), tick("bad"))))

	require.Len(t, handler.calls, 1)
	assert.Equal(t, strategy.Buy, handler.calls[0].action)
	snap := store.Snapshot()
	assert.EqualValues(t, 2, snap.Dropped)
	assert.EqualValues(t, 2, snap.Ticks)
	assert.Equal(t, 2, loop.Window().Len())
	assert.Equal(t, []float64{1.0, 0.9, 2.0}, observed)
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	loop, _, _, _ := newTestLoop(DropStale)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx, make(chan md.Tick))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopWithPaperVenueRoundTrip(t *testing.T) {
	paper := broker.NewPaper("PURR", "USDC", decimal.Zero, decimal.NewFromInt(1000))
	store := state.NewStore()
	sizer := risk.Sizer{
		Balances:        paper,
		Base:            "PURR",
		Quote:           "USDC",
		Policy:          risk.SizeFromBalance,
		LotSize:         decimal.NewFromInt(1),
		MinQuoteBalance: decimal.NewFromInt(100),
		MinBaseBalance:  decimal.NewFromInt(100),
	}
	controller := NewController(ControllerConfig{
		GracePeriod:     time.Second,
		RepriceSlippage: 0.01,
		PriceDecimals:   5,
	}, paper, sizer, store, &instantWaiter{}, nil)
	journal := &recordingJournal{}
	loop := NewLoop(LoopConfig{Symbol: "PURR/USDC", WindowSize: 3, Policy: BufferStale}, strategy.DefaultBands(), controller, store, journal, nil)
	loop.Observe(paper.Observe)

	require.NoError(t, loop.Run(context.Background(), feed(tick("1.0"), tick("0.9"), tick("2.0"))))

	fills := paper.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, broker.Buy, fills[0].Side)
	assert.Equal(t, "1111", fills[0].Size.String())
	assert.Equal(t, broker.Sell, fills[1].Side)
	assert.Equal(t, "1111", fills[1].Size.String())

	require.Len(t, journal.decisions, 2)
	assert.Equal(t, string(ResultFilled), journal.decisions[0].Result)
	assert.Equal(t, string(ResultFilled), journal.decisions[1].Result)
	assert.Equal(t, strategy.Sell, store.LastExecuted())

	base, _, _ := paper.Balance(context.Background(), "PURR")
	quote, _, _ := paper.Balance(context.Background(), "USDC")
	assert.True(t, base.IsZero())
	assert.Equal(t, "2222.1", quote.String())
}
