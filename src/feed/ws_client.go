package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

// Tick is one price update from the quote stream.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the midpoint price for zone checks.
func (t Tick) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	if t.Bid > 0 {
		return t.Bid
	}
	return t.Ask
}

// Client streams price ticks over a websocket and reconnects with capped
// exponential backoff. Ticks are dropped, never buffered stale, when the
// consumer falls behind.
type Client struct {
	url     string
	symbols []string
	ticks   chan Tick

	reconnectMin time.Duration
	reconnectMax time.Duration
}

func NewClient(url string, symbols []string) *Client {
	return &Client{
		url:          url,
		symbols:      symbols,
		ticks:        make(chan Tick, 100),
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Ticks is the consumer side of the stream.
func (c *Client) Ticks() <-chan Tick {
	return c.ticks
}

// Run keeps the stream alive until the context ends.
func (c *Client) Run(ctx context.Context) {
	backoff := c.reconnectMin

	for {
		if ctx.Err() != nil {
			close(c.ticks)
			return
		}

		connected, err := c.connectAndRead(ctx)
		if connected {
			// A held connection earns a fresh backoff; only repeated
			// failures to establish one grow the wait.
			backoff = c.reconnectMin
		}
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).WithField("url", c.url).
				Warnf("Quote stream dropped, reconnecting in %s", backoff)
		}

		select {
		case <-ctx.Done():
			close(c.ticks)
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

type subscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type tickMessage struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TS     int64   `json:"ts"` // unix milliseconds
}

// connectAndRead reports whether a connection was established alongside
// the error that ended it.
func (c *Client) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial quote stream: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(2 << 20)

	sub := subscribeMessage{Op: "subscribe", Args: c.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"url":     c.url,
		"symbols": strings.Join(c.symbols, ","),
	}).Info("Quote stream connected")

	for {
		if ctx.Err() != nil {
			return true, nil
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read quote stream: %w", err)
		}

		var msg tickMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Symbol == "" {
			continue // heartbeats and acks share the channel
		}

		tick := Tick{
			Symbol: strings.ToUpper(msg.Symbol),
			Bid:    msg.Bid,
			Ask:    msg.Ask,
			Time:   time.UnixMilli(msg.TS),
		}

		select {
		case c.ticks <- tick:
		default:
			// Consumer behind; a stale tick is worthless.
		}
	}
}
