package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Alpaca trades one crypto pair such as "BTC/USD" through the Alpaca
// trading API.
type Alpaca struct {
	client      *alpaca.Client
	symbol      string
	base        string
	quote       string
	runID       string
	orderSeqNum uint64
	log         *logrus.Entry
}

func NewAlpaca(apiKey, apiSecret, baseURL, symbol, runID string) (*Alpaca, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return nil, fmt.Errorf("alpaca symbol must look like BASE/QUOTE, got %q", symbol)
	}
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Alpaca{
		client: alpaca.NewClient(opts),
		symbol: symbol,
		base:   base,
		quote:  quote,
		runID:  runID,
		log:    logrus.WithFields(logrus.Fields{"component": "alpaca", "symbol": symbol}),
	}, nil
}

func (a *Alpaca) Submit(ctx context.Context, intent OrderIntent) (OrderHandle, error) {
	side := alpaca.Buy
	if intent.Side == Sell {
		side = alpaca.Sell
	}
	qty := intent.Size
	limitPrice := intent.LimitPrice
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        a.symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Limit,
		TimeInForce:   alpaca.GTC,
		LimitPrice:    &limitPrice,
		ClientOrderID: a.nextClientOrderID(),
	}

	order, err := a.client.PlaceOrder(orderReq)
	if err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{"side": side, "qty": qty, "limit": limitPrice}).Error("place order failed")
		return OrderHandle{}, classify("place order", err)
	}
	if order == nil || order.ID == "" {
		return OrderHandle{}, ErrEmptyStatus
	}

	a.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"side":     side,
		"qty":      qty,
		"limit":    limitPrice,
		"status":   order.Status,
	}).Info("place order success")
	return OrderHandle{ID: order.ID, Filled: order.Status == "filled"}, nil
}

func (a *Alpaca) Cancel(ctx context.Context, handle OrderHandle) error {
	if err := a.client.CancelOrder(handle.ID); err != nil {
		a.log.WithError(err).WithField("order_id", handle.ID).Warn("cancel order failed")
		return classify("cancel order", err)
	}
	a.log.WithField("order_id", handle.ID).Info("cancel order success")
	return nil
}

// Balance reports cash for the quote asset and the available position
// quantity for the base asset.
func (a *Alpaca) Balance(ctx context.Context, asset string) (decimal.Decimal, bool, error) {
	switch asset {
	case a.quote:
		acct, err := a.client.GetAccount()
		if err != nil {
			a.log.WithError(err).Error("fetch account failed")
			return decimal.Zero, false, classify("get account", err)
		}
		return acct.Cash, true, nil
	case a.base:
		pos, err := a.client.GetPosition(a.base + a.quote)
		if err != nil {
			var apiErr *alpaca.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return decimal.Zero, false, nil
			}
			a.log.WithError(err).Error("fetch position failed")
			return decimal.Zero, false, classify("get position", err)
		}
		return pos.QtyAvailable, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("asset %s is not part of %s", asset, a.symbol)
	}
}

func (a *Alpaca) nextClientOrderID() string {
	seq := atomic.AddUint64(&a.orderSeqNum, 1)
	return fmt.Sprintf("%s-%d", a.runID, seq)
}

func classify(op string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return &RejectedError{Op: op, Reason: fmt.Sprintf("%d %s", apiErr.StatusCode, apiErr.Message)}
	}
	return &TransportError{Op: op, Err: err}
}
