package md

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/sirupsen/logrus"
)

// AlpacaQuoteFeed streams crypto quotes for one symbol and turns each
// bid/ask pair into a mid-price tick.
type AlpacaQuoteFeed struct {
	APIKey    string
	APISecret string
	Feed      string
	Buffer    int
	Log       *logrus.Entry
}

// Start connects and subscribes. The returned channel is closed when the
// stream terminates or ctx is cancelled; a closed feed is not restarted.
func (f AlpacaQuoteFeed) Start(ctx context.Context, symbol string) (<-chan Tick, error) {
	log := f.Log
	if log == nil {
		log = logrus.WithField("component", "alpaca_feed")
	}
	buffer := f.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	client := stream.NewCryptoClient(
		parseCryptoFeed(f.Feed),
		stream.WithCredentials(f.APIKey, f.APISecret),
	)

	// Connect must be called before subscribing in this SDK version
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect market data stream: %w", err)
	}

	ticks := make(chan Tick, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	if err := client.SubscribeToQuotes(func(q stream.CryptoQuote) {
		tick, ok := quoteTick(q, time.Now().UTC())
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ticks <- tick:
		default:
			log.WithField("symbol", q.Symbol).Debug("tick channel full, quote dropped")
		}
	}, symbol); err != nil {
		return nil, fmt.Errorf("subscribe to quotes: %w", err)
	}

	log.WithField("symbol", symbol).Info("subscribed to crypto quotes")

	go func() {
		defer func() {
			mu.Lock()
			closed = true
			close(ticks)
			mu.Unlock()
		}()
		select {
		case <-ctx.Done():
		case err := <-client.Terminated():
			if err != nil {
				log.WithError(err).Warn("market data stream terminated")
			}
		}
	}()

	return ticks, nil
}

// quoteTick turns a two-sided quote into a mid-price tick.
func quoteTick(q stream.CryptoQuote, received time.Time) (Tick, bool) {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return Tick{}, false
	}
	mid := (q.BidPrice + q.AskPrice) / 2
	return Tick{
		Symbol:   q.Symbol,
		Price:    strconv.FormatFloat(mid, 'f', -1, 64),
		Received: received,
	}, true
}

func parseCryptoFeed(feed string) marketdata.CryptoFeed {
	switch feed {
	case "", "us":
		return marketdata.US
	default:
		return marketdata.CryptoFeed(feed)
	}
}
