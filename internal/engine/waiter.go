package engine

import (
	"context"
	"time"
)

// Waiter blocks for the grace period between placing and cancelling an
// order. It is an interface so tests and alternative schedulers can decide
// how the wait is served.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerWaiter waits on a real timer.
type TimerWaiter struct{}

func (TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	return WaitForContext(ctx, d)
}

func WaitForContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TickPolicy controls what happens to ticks that queue up while an order
// lifecycle is running.
type TickPolicy string

const (
	// DropStale discards ticks received during a lifecycle.
	DropStale TickPolicy = "drop"
	// BufferStale processes them in arrival order afterwards.
	BufferStale TickPolicy = "buffer"
)
