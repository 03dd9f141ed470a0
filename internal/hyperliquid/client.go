package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"midrev/internal/broker"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client talks to the /info and /exchange endpoints. Requests are never
// retried: a duplicate order submission is worse than a failed one.
type Client struct {
	http    *resty.Client
	signer  *Signer
	account string
	log     *logrus.Entry

	nonceMu   sync.Mutex
	lastNonce uint64
}

// NewClient builds a client. signer may be nil for read-only use; account is
// the address whose balances are queried.
func NewClient(baseURL string, signer *Signer, account string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	if account == "" && signer != nil {
		account = signer.Address().Hex()
	}
	return &Client{
		http:    client,
		signer:  signer,
		account: account,
		log:     logrus.WithFields(logrus.Fields{"component": "hyperliquid", "base_url": baseURL}),
	}
}

func (c *Client) SpotMeta(ctx context.Context) (SpotMeta, error) {
	var meta SpotMeta
	if err := c.info(ctx, infoRequest{Type: "spotMeta"}, &meta); err != nil {
		return SpotMeta{}, err
	}
	return meta, nil
}

// ResolveSpotPair finds a BASE/QUOTE pair in spotMeta.
func (c *Client) ResolveSpotPair(ctx context.Context, symbol string) (Market, error) {
	meta, err := c.SpotMeta(ctx)
	if err != nil {
		return Market{}, err
	}
	return meta.Resolve(symbol)
}

func (m SpotMeta) Resolve(symbol string) (Market, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return Market{}, fmt.Errorf("spot symbol must look like BASE/QUOTE, got %q", symbol)
	}
	tokens := make(map[int]SpotToken, len(m.Tokens))
	for _, token := range m.Tokens {
		tokens[token.Index] = token
	}
	for _, pair := range m.Universe {
		baseToken, okBase := tokens[pair.Tokens[0]]
		quoteToken, okQuote := tokens[pair.Tokens[1]]
		if !okBase || !okQuote {
			continue
		}
		if baseToken.Name == base && quoteToken.Name == quote {
			return Market{
				Symbol:     symbol,
				Base:       base,
				Quote:      quote,
				Asset:      uint32(spotAssetOffset + pair.Index),
				MidKey:     pair.Name,
				SzDecimals: baseToken.SzDecimals,
			}, nil
		}
	}
	return Market{}, fmt.Errorf("spot pair %s not listed", symbol)
}

func (c *Client) SpotBalances(ctx context.Context) ([]SpotBalance, error) {
	if c.account == "" {
		return nil, errors.New("no account address configured")
	}
	var state spotClearinghouseState
	if err := c.info(ctx, infoRequest{Type: "spotClearinghouseState", User: c.account}, &state); err != nil {
		return nil, err
	}
	return state.Balances, nil
}

// PlaceLimitOrder submits a single limit order and returns its first status.
func (c *Client) PlaceLimitOrder(ctx context.Context, asset uint32, isBuy bool, price, size decimal.Decimal, tif string) (OrderResult, error) {
	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      asset,
			IsBuy:      isBuy,
			LimitPx:    FormatWire(price),
			Size:       FormatWire(size),
			ReduceOnly: false,
			OrderType:  orderTypeWire{Limit: &limitOrderType{Tif: tif}},
		}},
		Grouping: "na",
	}

	statuses, err := c.exchange(ctx, "place order", action)
	if err != nil {
		return OrderResult{}, err
	}
	if len(statuses) == 0 {
		return OrderResult{}, broker.ErrEmptyStatus
	}

	var status orderStatus
	if err := json.Unmarshal(statuses[0], &status); err != nil {
		return OrderResult{}, &broker.RejectedError{Op: "place order", Reason: "unhandled status: " + string(statuses[0])}
	}
	switch {
	case status.Error != nil:
		return OrderResult{}, &broker.RejectedError{Op: "place order", Reason: *status.Error}
	case status.Filled != nil:
		return OrderResult{Oid: status.Filled.Oid, Filled: true, AvgPx: status.Filled.AvgPx}, nil
	case status.Resting != nil:
		return OrderResult{Oid: status.Resting.Oid}, nil
	default:
		return OrderResult{}, &broker.RejectedError{Op: "place order", Reason: "unhandled status: " + string(statuses[0])}
	}
}

// CancelOrder returns nil only when the exchange confirms the cancel.
func (c *Client) CancelOrder(ctx context.Context, asset uint32, oid uint64) error {
	action := cancelAction{
		Type:    "cancel",
		Cancels: []cancelWire{{Asset: asset, OrderID: oid}},
	}
	statuses, err := c.exchange(ctx, "cancel order", action)
	if err != nil {
		return err
	}
	for _, raw := range statuses {
		var status orderStatus
		if err := json.Unmarshal(raw, &status); err == nil && status.Error != nil {
			return &broker.RejectedError{Op: "cancel order", Reason: *status.Error}
		}
	}
	return nil
}

func (c *Client) info(ctx context.Context, req infoRequest, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/info")
	if err != nil {
		return &broker.TransportError{Op: "info " + req.Type, Err: err}
	}
	if resp.IsError() {
		return &broker.TransportError{Op: "info " + req.Type, Err: fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s response", req.Type)
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, op string, action any) ([]json.RawMessage, error) {
	if c.signer == nil {
		return nil, errors.New("exchange client has no signer")
	}
	nonce := c.nextNonce()
	sig, err := c.signer.SignL1Action(action, nonce)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(exchangeRequest{Action: action, Nonce: nonce, Signature: sig}).
		Post("/exchange")
	if err != nil {
		return nil, &broker.TransportError{Op: op, Err: err}
	}
	if resp.IsError() {
		return nil, &broker.TransportError{Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())}
	}

	var envelope exchangeResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", op)
	}
	if envelope.Status != "ok" {
		var reason string
		if err := json.Unmarshal(envelope.Response, &reason); err != nil {
			reason = string(envelope.Response)
		}
		c.log.WithFields(logrus.Fields{"op": op, "reason": reason}).Warn("error with exchange response")
		return nil, &broker.RejectedError{Op: op, Reason: reason}
	}

	var body exchangeResponseBody
	if err := json.Unmarshal(envelope.Response, &body); err != nil {
		return nil, errors.Wrapf(err, "decode %s body", op)
	}
	if body.Data == nil {
		return nil, nil
	}
	return body.Data.Statuses, nil
}

func (c *Client) nextNonce() uint64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	nonce := uint64(time.Now().UnixMilli())
	if nonce <= c.lastNonce {
		nonce = c.lastNonce + 1
	}
	c.lastNonce = nonce
	return nonce
}

// FormatWire renders a decimal with at most 8 places and no trailing zeros.
func FormatWire(value decimal.Decimal) string {
	return value.Round(8).String()
}
