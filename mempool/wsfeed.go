package mempool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"github.com/litepay-io/litepay-go/explorer"
)

const (
	wsPingInterval   = 30 * time.Second
	wsReadDeadline   = 90 * time.Second
	wsBackoffInitial = 2 * time.Second
	wsBackoffMax     = 2 * time.Minute
)

// WSFeed subscribes to an Esplora-style websocket endpoint for pushed
// address transactions. It is purely an accelerator in front of the
// poll loop: anything it misses, the next rebuild picks up.
//
// The connection is supervised: reconnect with capped exponential
// backoff, periodic pings, and a read deadline so a dead peer is
// detected and replaced instead of silently hanging.
type WSFeed struct {
	URL     string
	Tracker *Tracker
}

func NewWSFeed(url string, tracker *Tracker) *WSFeed {
	return &WSFeed{URL: url, Tracker: tracker}
}

// wire shapes of the push feed

type wsSubscribe struct {
	TrackAddresses []string `json:"track-addresses"`
}

type wsMessage struct {
	AddressTransactions []struct {
		TxID string `json:"txid"`
		Vin  []struct {
			Prevout struct {
				ScriptPubKeyAddress string `json:"scriptpubkey_address"`
				Value               int64  `json:"value"`
			} `json:"prevout"`
		} `json:"vin"`
		Vout []struct {
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
			Value               int64  `json:"value"`
		} `json:"vout"`
	} `json:"address-transactions"`
}

// Run keeps the subscription alive until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := wsBackoffInitial

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithField("url", f.URL).Warnf("websocket feed dropped, reconnecting in %s: %v", backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsBackoffMax {
			backoff = wsBackoffMax
		}
	}
}

// runOnce dials, subscribes and pumps messages until the connection
// dies or ctx is cancelled.
func (f *WSFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := wsSubscribe{TrackAddresses: f.Tracker.TrackedAddresses()}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"url":       f.URL,
		"addresses": len(sub.TrackAddresses),
	}).Info("websocket feed subscribed")

	// close the connection when ctx dies so the read below unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// health check: ping on an interval, expect pongs to push the
	// read deadline forward
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Debugf("unparsable websocket payload: %v", err)
			continue
		}
		for _, raw := range msg.AddressTransactions {
			tx := &explorer.TransactionDetails{TxID: raw.TxID, InMempool: true}
			for _, in := range raw.Vin {
				tx.Ins = append(tx.Ins, explorer.TxIn{
					PrevAddress: in.Prevout.ScriptPubKeyAddress,
					Value:       in.Prevout.Value,
				})
			}
			for _, out := range raw.Vout {
				tx.Outs = append(tx.Outs, explorer.TxOut{
					Address: out.ScriptPubKeyAddress,
					Value:   out.Value,
				})
			}
			f.Tracker.Observe(tx)
		}
	}
}
