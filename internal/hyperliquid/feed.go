package hyperliquid

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"midrev/internal/md"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MidFeed subscribes to the allMids channel and emits ticks for one key.
type MidFeed struct {
	URL          string
	PingInterval time.Duration
	Buffer       int
	Dialer       *websocket.Dialer
	Log          *logrus.Entry
}

// Start dials the websocket and subscribes. The returned channel is closed
// when the connection drops or ctx is cancelled; the feed does not reconnect.
func (f MidFeed) Start(ctx context.Context, key string) (<-chan md.Tick, error) {
	log := f.Log
	if log == nil {
		log = logrus.WithField("component", "hyperliquid_feed")
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	buffer := f.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	pingInterval := f.PingInterval
	if pingInterval <= 0 {
		pingInterval = 50 * time.Second
	}

	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", f.URL)
	}

	var writeMu sync.Mutex
	write := func(msg wsRequest) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(msg)
	}

	if err := write(wsRequest{Method: "subscribe", Subscription: &wsSubscription{Type: "allMids"}}); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "subscribe allMids")
	}
	log.WithFields(logrus.Fields{"url": f.URL, "key": key}).Info("subscribed to allMids")

	ticks := make(chan md.Tick, buffer)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := write(wsRequest{Method: "ping"}); err != nil {
					log.WithError(err).Warn("ping failed")
				}
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(done)
		defer conn.Close()
		var dropped uint64
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("allMids stream closed")
				}
				return
			}
			var msg wsMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.WithError(err).Debug("ignoring undecodable message")
				continue
			}
			if msg.Channel != "allMids" {
				continue
			}
			var data allMidsData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.WithError(err).Debug("ignoring malformed allMids payload")
				continue
			}
			price, ok := data.Mids[key]
			if !ok {
				continue
			}
			select {
			case ticks <- md.Tick{Symbol: key, Price: price, Received: time.Now().UTC()}:
			default:
				dropped++
				log.WithField("dropped", dropped).Debug("tick channel full, mid dropped")
			}
		}
	}()

	return ticks, nil
}
