package hyperliquid

import (
	"context"
	"strconv"

	"midrev/internal/broker"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Exchange adapts Client to broker.Exchange for a single spot market.
type Exchange struct {
	client *Client
	market Market
	log    *logrus.Entry
}

func NewExchange(client *Client, market Market) *Exchange {
	return &Exchange{
		client: client,
		market: market,
		log:    logrus.WithFields(logrus.Fields{"component": "hyperliquid", "symbol": market.Symbol}),
	}
}

func (e *Exchange) Submit(ctx context.Context, intent broker.OrderIntent) (broker.OrderHandle, error) {
	result, err := e.client.PlaceLimitOrder(ctx, e.market.Asset, intent.Side == broker.Buy, intent.LimitPrice, intent.Size, TifGtc)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"side": intent.Side, "limit": intent.LimitPrice, "size": intent.Size}).Warn("place order failed")
		return broker.OrderHandle{}, err
	}
	e.log.WithFields(logrus.Fields{
		"oid":    result.Oid,
		"side":   intent.Side,
		"limit":  intent.LimitPrice,
		"size":   intent.Size,
		"filled": result.Filled,
		"avg_px": result.AvgPx,
	}).Info("order placed")
	return broker.OrderHandle{ID: strconv.FormatUint(result.Oid, 10), Filled: result.Filled}, nil
}

func (e *Exchange) Cancel(ctx context.Context, handle broker.OrderHandle) error {
	oid, err := strconv.ParseUint(handle.ID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parse order id %q", handle.ID)
	}
	return e.client.CancelOrder(ctx, e.market.Asset, oid)
}

// Balance reports total minus hold for the coin.
func (e *Exchange) Balance(ctx context.Context, asset string) (decimal.Decimal, bool, error) {
	balances, err := e.client.SpotBalances(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	for _, balance := range balances {
		if balance.Coin != asset {
			continue
		}
		total, err := decimal.NewFromString(balance.Total)
		if err != nil {
			return decimal.Zero, false, errors.Wrapf(err, "parse %s total", asset)
		}
		hold := decimal.Zero
		if balance.Hold != "" {
			if hold, err = decimal.NewFromString(balance.Hold); err != nil {
				return decimal.Zero, false, errors.Wrapf(err, "parse %s hold", asset)
			}
		}
		return total.Sub(hold), true, nil
	}
	return decimal.Zero, false, nil
}
