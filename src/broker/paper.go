package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/risk"
)

// contractSize is the standard lot size used to turn price distance into
// paper profit.
const contractSize = 100000.0

// PaperBroker simulates execution against the latest known quote. Used for
// dry runs; orders never touch a real venue. Prices are fed in from the
// quote stream via SetPrice.
type PaperBroker struct {
	mu         sync.Mutex
	prices     map[string]float64
	positions  map[int64]*Order
	nextTicket int64
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		prices:     make(map[string]float64),
		positions:  make(map[int64]*Order),
		nextTicket: 1000,
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// SetPrice records the latest quote for a symbol.
func (p *PaperBroker) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToUpper(symbol)] = price
}

func (p *PaperBroker) Price(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[strings.ToUpper(symbol)]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no quote seen for %s", symbol)
	}
	return price, nil
}

func (p *PaperBroker) OpenMarket(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Lots <= 0 {
		return nil, errors.New("lots must be > 0")
	}

	price, err := p.Price(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextTicket++
	order := &Order{
		Ticket:     p.nextTicket,
		Symbol:     strings.ToUpper(req.Symbol),
		Side:       req.Side,
		Lots:       req.Lots,
		EntryPrice: price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Comment:    req.Comment,
		OpenedAt:   time.Now().UTC(),
	}
	p.positions[order.Ticket] = order

	logger.WithFields(map[string]interface{}{
		"ticket": order.Ticket,
		"symbol": order.Symbol,
		"side":   order.Side,
		"lots":   order.Lots,
		"price":  price,
	}).Info("Paper order opened")

	return order, nil
}

func (p *PaperBroker) Close(ctx context.Context, ticket int64, lots float64) (*CloseResult, error) {
	price := 0.0

	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.positions[ticket]
	if !ok {
		return nil, fmt.Errorf("ticket %d not found", ticket)
	}

	price = p.prices[order.Symbol]
	if price <= 0 {
		return nil, fmt.Errorf("no quote seen for %s", order.Symbol)
	}

	if lots <= 0 || lots > order.Lots {
		lots = order.Lots
	}

	direction := 1.0
	if order.Side == SideSell {
		direction = -1.0
	}
	profit := (price - order.EntryPrice) * direction * lots * contractSize

	// JPY quotes and metals are far from 1.0 per point; normalise through
	// the pip profile so paper P&L stays plausible.
	profile := risk.GetProfile(order.Symbol)
	if profile.PipSize > 0 {
		pips := (price - order.EntryPrice) * direction / profile.PipSize
		profit = pips * lots * 10.0 // ~$10 per pip per standard lot
	}

	order.Lots -= lots
	if order.Lots <= 0 {
		delete(p.positions, ticket)
	}

	logger.WithFields(map[string]interface{}{
		"ticket": ticket,
		"lots":   lots,
		"price":  price,
		"profit": profit,
	}).Info("Paper order closed")

	return &CloseResult{Ticket: ticket, ClosePrice: price, Profit: profit}, nil
}

func (p *PaperBroker) ModifyStop(ctx context.Context, ticket int64, newStop float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.positions[ticket]
	if !ok {
		return fmt.Errorf("ticket %d not found", ticket)
	}
	order.StopLoss = newStop
	return nil
}

func (p *PaperBroker) OpenPositions(ctx context.Context, symbol string) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = strings.ToUpper(symbol)

	out := make([]Order, 0, len(p.positions))
	for _, order := range p.positions {
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}
