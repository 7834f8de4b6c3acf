package broker

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest describes one leg to open at market.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Lots       float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// Order is a normalized view of an open broker position.
type Order struct {
	Ticket     int64
	Symbol     string
	Side       OrderSide
	Lots       float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
	OpenedAt   time.Time
}

// CloseResult reports a fill that flattened (part of) a position.
type CloseResult struct {
	Ticket     int64
	ClosePrice float64
	Profit     float64
}

// Broker is the minimal execution surface the agent needs: quote lookup,
// market entry, partial close, stop modification and position listing for
// reconciliation.
type Broker interface {
	Name() string
	Price(ctx context.Context, symbol string) (float64, error)
	OpenMarket(ctx context.Context, req OrderRequest) (*Order, error)
	Close(ctx context.Context, ticket int64, lots float64) (*CloseResult, error)
	ModifyStop(ctx context.Context, ticket int64, newStop float64) error
	OpenPositions(ctx context.Context, symbol string) ([]Order, error)
}

// ForName returns the broker implementation selected by configuration.
func ForName(name string) (Broker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "paper":
		return NewPaperBroker(), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", name)
	}
}
