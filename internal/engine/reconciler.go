package engine

import (
	"context"
	"time"

	"midrev/internal/risk"
	"midrev/internal/state"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconcileLoop refreshes the balance snapshot every interval until ctx is
// done. It never touches the decision state.
func ReconcileLoop(ctx context.Context, balances risk.BalanceSource, store *state.Store, base, quote string, interval time.Duration, log *logrus.Entry) {
	if log == nil {
		log = logrus.WithField("component", "reconciler")
	}
	reconcileOnce(ctx, balances, store, base, quote, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcileOnce(ctx, balances, store, base, quote, log)
		}
	}
}

func reconcileOnce(ctx context.Context, balances risk.BalanceSource, store *state.Store, base, quote string, log *logrus.Entry) {
	current := store.Snapshot().Balances
	next := state.Balances{Base: current.Base, Quote: current.Quote, UpdatedAt: time.Now().UTC()}
	failed := 0

	if qty, ok, err := balances.Balance(ctx, base); err != nil {
		log.WithError(err).WithField("asset", base).Warn("reconcile balance failed")
		failed++
	} else if ok {
		next.Base = qty
	} else {
		next.Base = decimal.Zero
	}

	if qty, ok, err := balances.Balance(ctx, quote); err != nil {
		log.WithError(err).WithField("asset", quote).Warn("reconcile balance failed")
		failed++
	} else if ok {
		next.Quote = qty
	} else {
		next.Quote = decimal.Zero
	}

	if failed == 2 {
		return
	}
	store.UpdateBalances(next)
	log.WithFields(logrus.Fields{base: next.Base, quote: next.Quote}).Debug("balances reconciled")
}
